package training

import (
	"context"
	"math"

	"github.com/poiesic/tensorvault/core"
)

const (
	// DefaultStepSize is the maturity gained per IncrementalStrategy cycle.
	DefaultStepSize = 0.05

	// MaturityTolerance bounds how far past the target a cycle may go.
	MaturityTolerance = 0.1
)

// Strategy computes one training cycle. It receives the current record and
// its decoded tensor and returns the next tensor and maturity. The trainer
// clamps the returned maturity, so strategies need not.
type Strategy interface {
	Step(ctx context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error)

// Step calls f.
func (f StrategyFunc) Step(ctx context.Context, record *core.TensorRecord, tensor *core.Tensor, target float64) (*core.Tensor, float64, error) {
	return f(ctx, record, tensor, target)
}

// IncrementalStrategy raises maturity by a fixed step per cycle and leaves
// the tensor contents unchanged.
type IncrementalStrategy struct {
	StepSize float64
}

// NewIncrementalStrategy returns an IncrementalStrategy with DefaultStepSize.
func NewIncrementalStrategy() *IncrementalStrategy {
	return &IncrementalStrategy{StepSize: DefaultStepSize}
}

// Step implements Strategy.
func (s *IncrementalStrategy) Step(_ context.Context, record *core.TensorRecord, tensor *core.Tensor, _ float64) (*core.Tensor, float64, error) {
	step := s.StepSize
	if step <= 0 {
		step = DefaultStepSize
	}
	return tensor, record.Maturity + step, nil
}

// clampMaturity keeps maturity non-decreasing and within
// [current, min(1, target+MaturityTolerance)].
func clampMaturity(next, current, target float64) float64 {
	if math.IsNaN(next) {
		return current
	}
	ceiling := min(1.0, target+MaturityTolerance)
	next = min(next, ceiling)
	return max(next, current)
}
