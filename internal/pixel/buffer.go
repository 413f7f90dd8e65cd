// Package pixel holds the in-memory intensity buffer shared by the codecs and
// the normalizer.
package pixel

import (
	"fmt"
	"math"
)

// Buffer is a row-major 2-D intensity array. Samples are interleaved when a
// pixel carries more than one sample (RGB).
type Buffer struct {
	Rows    int
	Cols    int
	Samples int  // samples per pixel, 1 or 3
	Depth   int  // bits per sample
	Signed  bool // two's complement source data
	Data    []int32
}

// New allocates a zeroed unsigned buffer.
func New(rows, cols, samples, depth int) Buffer {
	return Buffer{
		Rows:    rows,
		Cols:    cols,
		Samples: samples,
		Depth:   depth,
		Data:    make([]int32, rows*cols*samples),
	}
}

// Len returns the expected number of values.
func (b Buffer) Len() int {
	return b.Rows * b.Cols * b.Samples
}

// Bounds returns the smallest and largest representable value for the
// buffer's depth and signedness.
func (b Buffer) Bounds() (lo, hi int64) {
	if b.Signed {
		return -(int64(1) << (b.Depth - 1)), int64(1)<<(b.Depth-1) - 1
	}
	return 0, int64(1)<<b.Depth - 1
}

// Validate checks the geometry and that every value fits the declared depth.
func (b Buffer) Validate() error {
	if b.Rows <= 0 || b.Cols <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", b.Cols, b.Rows)
	}
	if b.Samples != 1 && b.Samples != 3 {
		return fmt.Errorf("unsupported samples per pixel: %d", b.Samples)
	}
	if b.Depth < 1 || b.Depth > 32 {
		return fmt.Errorf("unsupported bit depth: %d", b.Depth)
	}
	if len(b.Data) != b.Len() {
		return fmt.Errorf("buffer holds %d values, expected %d (%dx%dx%d)",
			len(b.Data), b.Len(), b.Cols, b.Rows, b.Samples)
	}
	if b.Depth == 32 {
		return nil
	}
	lo, hi := b.Bounds()
	for i, v := range b.Data {
		if int64(v) < lo || int64(v) > hi {
			return fmt.Errorf("value %d at index %d outside %d-bit range [%d, %d]", v, i, b.Depth, lo, hi)
		}
	}
	return nil
}

// IsContainer reports whether the buffer is in a representation a raster or
// DICOM container can store directly: unsigned, 8 or 16 bits.
func (b Buffer) IsContainer() bool {
	return !b.Signed && (b.Depth == 8 || b.Depth == 16)
}

// MinMax returns the smallest and largest values in the buffer.
func (b Buffer) MinMax() (lo, hi int32) {
	if len(b.Data) == 0 {
		return 0, 0
	}
	lo, hi = math.MaxInt32, math.MinInt32
	for _, v := range b.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
