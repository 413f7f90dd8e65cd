package pixel

import (
	"fmt"
	"math"
)

// ToEightBit linearly rescales the input range [min, max] onto [0, 255].
// A constant buffer has no range to stretch and maps to all zeros.
func ToEightBit(b Buffer) Buffer {
	out := Buffer{
		Rows:    b.Rows,
		Cols:    b.Cols,
		Samples: b.Samples,
		Depth:   8,
		Data:    make([]int32, len(b.Data)),
	}

	lo, hi := b.MinMax()
	if hi == lo {
		return out
	}

	scale := 255.0 / (float64(hi) - float64(lo))
	for i, v := range b.Data {
		out.Data[i] = int32(math.Round((float64(v) - float64(lo)) * scale))
	}
	return out
}

// ToSixteenBit copies an unsigned 8 or 16 bit buffer into a 16 bit one
// without rescaling.
func ToSixteenBit(b Buffer) (Buffer, error) {
	if !b.IsContainer() {
		return Buffer{}, fmt.Errorf("cannot widen %d-bit (signed=%v) buffer to 16 bits", b.Depth, b.Signed)
	}
	out := Buffer{
		Rows:    b.Rows,
		Cols:    b.Cols,
		Samples: b.Samples,
		Depth:   16,
		Data:    make([]int32, len(b.Data)),
	}
	copy(out.Data, b.Data)
	return out, nil
}
