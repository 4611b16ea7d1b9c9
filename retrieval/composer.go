package retrieval

import (
	"fmt"

	"github.com/poiesic/tensorvault/core"
)

// Method selects how Compose merges tensors.
type Method string

const (
	// MethodWeightedBlend averages sub-vectors with normalized weights.
	MethodWeightedBlend Method = "weighted_blend"

	// MethodMaxPool keeps the largest value per element.
	MethodMaxPool Method = "max_pool"

	// MethodHierarchical lets later tensors override earlier ones wherever
	// they are non-zero.
	MethodHierarchical Method = "hierarchical"
)

// ParseMethod maps a method name to a Method.
func ParseMethod(name string) (Method, error) {
	m := Method(name)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	return m, nil
}

// IsValid reports whether m is a known method.
func (m Method) IsValid() bool {
	switch m {
	case MethodWeightedBlend, MethodMaxPool, MethodHierarchical:
		return true
	}
	return false
}

// WeightedBlend returns the weighted average of vectors. Nil weights mean
// equal weights. Weights are normalized to sum to one; a non-positive
// total falls back to equal weights.
func WeightedBlend(vectors [][]float64, weights []float64) ([]float64, error) {
	if err := checkVectors(vectors); err != nil {
		return nil, err
	}
	if weights != nil && len(weights) != len(vectors) {
		return nil, fmt.Errorf("%w: %d weights for %d tensors", ErrWeightsMismatch, len(weights), len(vectors))
	}

	norm := normalizeWeights(weights, len(vectors))
	out := make([]float64, len(vectors[0]))
	for j, vec := range vectors {
		for i, v := range vec {
			out[i] += v * norm[j]
		}
	}
	return out, nil
}

// MaxPool returns the elementwise maximum of vectors.
func MaxPool(vectors [][]float64) ([]float64, error) {
	if err := checkVectors(vectors); err != nil {
		return nil, err
	}
	out := append([]float64(nil), vectors[0]...)
	for _, vec := range vectors[1:] {
		for i, v := range vec {
			out[i] = max(out[i], v)
		}
	}
	return out, nil
}

// Hierarchical starts from the first vector and applies every non-zero
// element of each later vector on top.
func Hierarchical(vectors [][]float64) ([]float64, error) {
	if err := checkVectors(vectors); err != nil {
		return nil, err
	}
	out := append([]float64(nil), vectors[0]...)
	for _, vec := range vectors[1:] {
		for i, v := range vec {
			if v != 0 {
				out[i] = v
			}
		}
	}
	return out, nil
}

// Compose merges tensors with method, sub-vector by sub-vector. Weights
// only apply to MethodWeightedBlend. A single tensor is returned as a copy.
func Compose(tensors []*core.Tensor, method Method, weights []float64) (*core.Tensor, error) {
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if len(tensors) == 0 {
		return nil, ErrEmptyComposition
	}
	if method == MethodWeightedBlend && weights != nil && len(weights) != len(tensors) {
		return nil, fmt.Errorf("%w: %d weights for %d tensors", ErrWeightsMismatch, len(weights), len(tensors))
	}
	for i, t := range tensors {
		if err := core.ValidateTensor(t); err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
	}
	if len(tensors) == 1 {
		return tensors[0].Clone(), nil
	}

	apply := func(vectors [][]float64) ([]float64, error) {
		switch method {
		case MethodMaxPool:
			return MaxPool(vectors)
		case MethodHierarchical:
			return Hierarchical(vectors)
		default:
			return WeightedBlend(vectors, weights)
		}
	}

	parts := [3][][]float64{}
	for _, t := range tensors {
		parts[0] = append(parts[0], t.Context)
		parts[1] = append(parts[1], t.Biology)
		parts[2] = append(parts[2], t.Behavior)
	}
	var out [3][]float64
	for i, vectors := range parts {
		v, err := apply(vectors)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &core.Tensor{Context: out[0], Biology: out[1], Behavior: out[2]}, nil
}

// BlendWithScores blends tensors weighted by their similarity scores.
func BlendWithScores(tensors []*core.Tensor, scores []float64) (*core.Tensor, error) {
	if scores == nil {
		scores = []float64{}
	}
	return Compose(tensors, MethodWeightedBlend, scores)
}

func checkVectors(vectors [][]float64) error {
	if len(vectors) == 0 {
		return ErrEmptyComposition
	}
	n := len(vectors[0])
	for i, vec := range vectors[1:] {
		if len(vec) != n {
			return fmt.Errorf("%w: vector %d has %d values, want %d", core.ErrInvalidTensorShape, i+1, len(vec), n)
		}
	}
	return nil
}

func normalizeWeights(weights []float64, n int) []float64 {
	out := make([]float64, n)
	var total float64
	for _, w := range weights {
		total += w
	}
	if weights == nil || total <= 0 {
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out
	}
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}
