// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Finite returns whether all values are finite
func Finite(values []float64) bool {
	if len(values) == 0 {
		return true
	}
	return !floats.HasNaN(values) && !math.IsInf(floats.Max(values), 1) &&
		!math.IsInf(floats.Min(values), -1)
}

// ArgMax returns the lowest index of the maximum value in values,
// considering only indices i where mask[i] is true. A nil mask
// considers all indices. If no index is considered, ArgMax returns
// false.
func ArgMax(values []float64, mask []bool) (int, bool) {
	best := -1
	for i, value := range values {
		if mask != nil && !mask[i] {
			continue
		}
		if best < 0 || value > values[best] {
			best = i
		}
	}
	return best, best >= 0
}
