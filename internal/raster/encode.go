package raster

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/mrsinham/dicompixel/internal/pixel"
	"golang.org/x/image/draw"
)

// EncodeOptions controls raster export.
type EncodeOptions struct {
	JPEGQuality int // 1-100, 0 means DefaultJPEGQuality

	// MaxDimension downscales the image so neither side exceeds it,
	// keeping the aspect ratio. 0 disables resizing.
	MaxDimension int
}

// Encode writes buf to w in the given format.
func Encode(w io.Writer, format Format, buf pixel.Buffer, opts EncodeOptions) error {
	img, err := pixel.ToImage(buf)
	if err != nil {
		return err
	}
	img = fit(img, opts.MaxDimension)

	switch format {
	case JPEG:
		quality := opts.JPEGQuality
		if quality == 0 {
			quality = DefaultJPEGQuality
		}
		if quality < 1 || quality > 100 {
			return fmt.Errorf("jpeg quality %d out of range 1-100", quality)
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case PNG:
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unknown raster format %d", format)
	}
}

// WriteFile encodes buf into a new file at path.
func WriteFile(path string, format Format, buf pixel.Buffer, opts EncodeOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, format, buf, opts); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return f.Close()
}

// fit scales img down so both sides fit in maxDim.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	scale := float64(maxDim) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	rect := image.Rect(0, 0, nw, nh)

	var dst draw.Image
	switch img.(type) {
	case *image.Gray:
		dst = image.NewGray(rect)
	case *image.Gray16:
		dst = image.NewGray16(rect)
	case *image.RGBA64:
		dst = image.NewRGBA64(rect)
	default:
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}
