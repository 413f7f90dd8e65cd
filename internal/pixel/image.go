package pixel

import (
	"fmt"
	"image"
	"image/color"
)

// FromImage copies an image into a buffer. Gray and Gray16 images keep a
// single sample at 8 and 16 bits. Anything else becomes 8-bit RGB.
func FromImage(img image.Image) Buffer {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()

	switch src := img.(type) {
	case *image.Gray:
		buf := New(h, w, 1, 8)
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for x, v := range row {
				buf.Data[y*w+x] = int32(v)
			}
		}
		return buf
	case *image.Gray16:
		buf := New(h, w, 1, 16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				buf.Data[y*w+x] = int32(src.Gray16At(r.Min.X+x, r.Min.Y+y).Y)
			}
		}
		return buf
	}

	buf := New(h, w, 3, 8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			i := (y*w + x) * 3
			buf.Data[i] = int32(c.R)
			buf.Data[i+1] = int32(c.G)
			buf.Data[i+2] = int32(c.B)
		}
	}
	return buf
}

// ToImage wraps an unsigned 8 or 16 bit buffer in the matching image type.
func ToImage(b Buffer) (image.Image, error) {
	if !b.IsContainer() {
		return nil, fmt.Errorf("buffer must be unsigned 8 or 16 bit, got %d-bit signed=%v", b.Depth, b.Signed)
	}
	if len(b.Data) != b.Len() {
		return nil, fmt.Errorf("buffer holds %d values, expected %d", len(b.Data), b.Len())
	}
	rect := image.Rect(0, 0, b.Cols, b.Rows)

	switch {
	case b.Samples == 1 && b.Depth == 8:
		img := image.NewGray(rect)
		for i, v := range b.Data {
			img.Pix[i] = uint8(v)
		}
		return img, nil
	case b.Samples == 1 && b.Depth == 16:
		img := image.NewGray16(rect)
		for i, v := range b.Data {
			img.Pix[2*i] = uint8(v >> 8)
			img.Pix[2*i+1] = uint8(v)
		}
		return img, nil
	case b.Samples == 3 && b.Depth == 8:
		img := image.NewRGBA(rect)
		for p := 0; p < b.Rows*b.Cols; p++ {
			img.Pix[4*p] = uint8(b.Data[3*p])
			img.Pix[4*p+1] = uint8(b.Data[3*p+1])
			img.Pix[4*p+2] = uint8(b.Data[3*p+2])
			img.Pix[4*p+3] = 0xff
		}
		return img, nil
	case b.Samples == 3 && b.Depth == 16:
		img := image.NewRGBA64(rect)
		for p := 0; p < b.Rows*b.Cols; p++ {
			img.SetRGBA64(p%b.Cols, p/b.Cols, color.RGBA64{
				R: uint16(b.Data[3*p]),
				G: uint16(b.Data[3*p+1]),
				B: uint16(b.Data[3*p+2]),
				A: 0xffff,
			})
		}
		return img, nil
	}
	return nil, fmt.Errorf("unsupported samples per pixel: %d", b.Samples)
}
