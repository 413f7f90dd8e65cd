package pixel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the intensity distribution of a buffer.
type Summary struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Summarize computes min, max, mean and standard deviation over all samples.
func Summarize(b Buffer) Summary {
	if len(b.Data) == 0 {
		return Summary{}
	}
	values := make([]float64, len(b.Data))
	for i, v := range b.Data {
		values[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Summary{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}
