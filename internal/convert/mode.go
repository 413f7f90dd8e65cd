package convert

import (
	"fmt"
	"strings"

	"github.com/mrsinham/dicompixel/internal/raster"
	"github.com/mrsinham/dicompixel/internal/util"
)

// Mode is a conversion direction.
type Mode int

const (
	DicomToPng Mode = iota
	DicomToJpeg
	PngToDicom
	JpegToDicom
)

// AllModes lists every mode in display order.
func AllModes() []Mode {
	return []Mode{DicomToPng, DicomToJpeg, PngToDicom, JpegToDicom}
}

// String returns the flag spelling of the mode.
func (m Mode) String() string {
	switch m {
	case DicomToJpeg:
		return "dicom-to-jpeg"
	case PngToDicom:
		return "png-to-dicom"
	case JpegToDicom:
		return "jpeg-to-dicom"
	default:
		return "dicom-to-png"
	}
}

// Label returns the human readable name of the mode.
func (m Mode) Label() string {
	switch m {
	case DicomToJpeg:
		return "DICOM to JPEG"
	case PngToDicom:
		return "PNG to DICOM"
	case JpegToDicom:
		return "JPEG to DICOM"
	default:
		return "DICOM to PNG"
	}
}

// ParseMode accepts the flag spelling ("dicom-to-png") as well as the label
// ("DICOM to PNG"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "-", "_", "-").Replace(norm)

	if src, dst, ok := strings.Cut(norm, "-to-"); ok {
		switch {
		case src == "dicom":
			if f, err := raster.ParseFormat(dst); err == nil {
				return fromRaster(f, true), nil
			}
		case dst == "dicom":
			if f, err := raster.ParseFormat(src); err == nil {
				return fromRaster(f, false), nil
			}
		}
	}
	return DicomToPng, fmt.Errorf("invalid mode: %s (valid: dicom-to-png, dicom-to-jpeg, png-to-dicom, jpeg-to-dicom)", s)
}

func fromRaster(f raster.Format, fromDICOM bool) Mode {
	switch {
	case fromDICOM && f == raster.JPEG:
		return DicomToJpeg
	case fromDICOM:
		return DicomToPng
	case f == raster.JPEG:
		return JpegToDicom
	default:
		return PngToDicom
	}
}

// FromDICOM reports whether the mode reads DICOM and writes a raster image.
func (m Mode) FromDICOM() bool {
	return m == DicomToPng || m == DicomToJpeg
}

// RasterFormat returns the raster side of the conversion.
func (m Mode) RasterFormat() raster.Format {
	if m == DicomToJpeg || m == JpegToDicom {
		return raster.JPEG
	}
	return raster.PNG
}

// OutputExtension returns the extension of files produced by the mode.
func (m Mode) OutputExtension() string {
	if m.FromDICOM() {
		return m.RasterFormat().Extension()
	}
	return util.ExtDICOM
}

// AcceptsInput reports whether path has an extension this mode can read.
func (m Mode) AcceptsInput(path string) bool {
	switch m {
	case PngToDicom:
		return util.IsPNGPath(path)
	case JpegToDicom:
		return util.IsJPEGPath(path)
	default:
		return util.IsDICOMPath(path)
	}
}

// acceptedExtensions is used in error messages.
func (m Mode) acceptedExtensions() []string {
	switch m {
	case PngToDicom:
		return []string{".png"}
	case JpegToDicom:
		return []string{".jpg", ".jpeg"}
	default:
		return []string{".dcm", ".dicom"}
	}
}
