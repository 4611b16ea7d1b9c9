package reembed

import (
	"fmt"
	"math"
)

// NormalizeVector returns v scaled to unit length.
// A zero vector comes back as a new zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	result := make([]float32, len(v))
	if sum == 0 {
		return result
	}
	magnitude := math.Sqrt(sum)
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// checkDimension verifies every vector has width dim. A dim <= 0 accepts
// any width as long as all vectors agree.
func checkDimension(vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if dim <= 0 {
			dim = len(v)
		}
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
