package raster

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/gift"
	"github.com/mrsinham/dicompixel/internal/pixel"
	"github.com/mrsinham/dicompixel/internal/util"
)

// Decode reads a PNG or JPEG file as a single-channel buffer. Color images
// are reduced to luminance. 16-bit sources keep 16 bits, everything else is
// returned at 8 bits.
func Decode(path string) (pixel.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return pixel.Buffer{}, err
	}
	defer func() { _ = f.Close() }()

	img, format, err := image.Decode(f)
	if err != nil {
		return pixel.Buffer{}, &util.DecodeError{Path: path, Format: formatFromPath(path), Err: err}
	}
	if img.Bounds().Empty() {
		return pixel.Buffer{}, &util.DecodeError{Path: path, Format: format, Err: fmt.Errorf("image has no pixels")}
	}

	return pixel.FromImage(Grayscale(img)), nil
}

// Grayscale converts img to *image.Gray or *image.Gray16 anchored at (0,0).
// Gray sources are copied unchanged.
func Grayscale(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.Gray:
		if src.Bounds().Min == (image.Point{}) {
			return src
		}
	case *image.Gray16:
		if src.Bounds().Min == (image.Point{}) {
			return src
		}
	}

	g := gift.New(gift.Grayscale())
	bounds := g.Bounds(img.Bounds())
	if is16Bit(img) {
		dst := image.NewGray16(bounds)
		g.Draw(dst, img)
		return dst
	}
	dst := image.NewGray(bounds)
	g.Draw(dst, img)
	return dst
}

func is16Bit(img image.Image) bool {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

func formatFromPath(path string) string {
	if util.IsJPEGPath(path) {
		return "jpeg"
	}
	if util.IsPNGPath(path) {
		return "png"
	}
	return "image"
}
