package util

import (
	"errors"
	"fmt"
)

// ErrUnsupportedExtension is returned when an input file does not carry an
// extension accepted by the requested decoder.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// UnsupportedExtension wraps ErrUnsupportedExtension with the offending path.
func UnsupportedExtension(path string, accepted ...string) error {
	if len(accepted) == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedExtension, path)
	}
	return fmt.Errorf("%w: %s (accepted: %v)", ErrUnsupportedExtension, path, accepted)
}

// DecodeError reports a file that could not be parsed as the expected format.
type DecodeError struct {
	Path   string
	Format string // "dicom", "png", "jpeg"
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s %s: %v", e.Format, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
