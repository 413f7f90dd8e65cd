package convert

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when there is nothing to package.
var ErrEmptyBatch = errors.New("no files were converted")

// ConversionError carries the input path and the last stage a file reached
// before it failed.
type ConversionError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s (after %s): %v", e.Path, e.Stage, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
