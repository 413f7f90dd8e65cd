package util

import (
	"path/filepath"
	"strings"
)

// Output extensions written by the converter.
const (
	ExtDICOM = ".dicom"
	ExtPNG   = ".png"
	ExtJPEG  = ".jpeg"
)

// RewriteExtension returns the base name of path with its extension replaced
// by ext. The directory part is dropped: "/a/b/img.jpeg" with ".dicom"
// becomes "img.dicom".
func RewriteExtension(path, ext string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return stem + ext
}

// IsDICOMPath reports whether path carries a DICOM extension (.dcm or .dicom,
// any case).
func IsDICOMPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dcm", ".dicom":
		return true
	}
	return false
}

// IsPNGPath reports whether path ends in .png (any case).
func IsPNGPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}

// IsJPEGPath reports whether path ends in .jpg or .jpeg (any case).
func IsJPEGPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
