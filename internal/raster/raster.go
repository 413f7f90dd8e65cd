// Package raster reads and writes PNG and JPEG images as pixel buffers.
package raster

import (
	"fmt"
	"strings"

	"github.com/mrsinham/dicompixel/internal/util"
)

// Format is a raster file format.
type Format int

const (
	PNG Format = iota
	JPEG
)

// DefaultJPEGQuality matches the quality used for every JPEG export.
const DefaultJPEGQuality = 90

// String returns the lowercase format name.
func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	default:
		return "png"
	}
}

// Extension returns the extension written for this format.
func (f Format) Extension() string {
	switch f {
	case JPEG:
		return util.ExtJPEG
	default:
		return util.ExtPNG
	}
}

// ParseFormat parses "png", "jpg" or "jpeg".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	default:
		return PNG, fmt.Errorf("invalid raster format: %s (valid: png, jpeg)", s)
	}
}
