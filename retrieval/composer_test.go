package retrieval

import (
	"testing"

	"github.com/poiesic/tensorvault/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(v float64) *core.Tensor {
	fill := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}
	return &core.Tensor{Context: fill(core.ContextDim), Biology: fill(core.BiologyDim), Behavior: fill(core.BehaviorDim)}
}

func TestWeightedBlend(t *testing.T) {
	vectors := [][]float64{{0, 1}, {1, 0}}

	out, err := WeightedBlend(vectors, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, out, 1e-12)

	out, err = WeightedBlend(vectors, []float64{3, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, out, 1e-12)

	out, err = WeightedBlend(vectors, []float64{0, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, out, 1e-12, "zero total falls back to equal weights")

	_, err = WeightedBlend(vectors, []float64{1})
	assert.ErrorIs(t, err, ErrWeightsMismatch)
	_, err = WeightedBlend(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyComposition)
	_, err = WeightedBlend([][]float64{{1}, {1, 2}}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTensorShape)
}

func TestMaxPoolAndHierarchical(t *testing.T) {
	vectors := [][]float64{{1, 5, 0, 2}, {3, 0, 0, -1}, {0, 4, 7, 0}}

	out, err := MaxPool(vectors)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5, 7, 2}, out)

	out, err = Hierarchical(vectors)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 7, -1}, out)

	assert.Equal(t, []float64{1, 5, 0, 2}, vectors[0], "inputs are not modified")

	_, err = MaxPool(nil)
	assert.ErrorIs(t, err, ErrEmptyComposition)
	_, err = Hierarchical(nil)
	assert.ErrorIs(t, err, ErrEmptyComposition)
}

func TestCompose(t *testing.T) {
	low, high := filled(0.2), filled(0.8)

	t.Run("identity for a single tensor", func(t *testing.T) {
		for _, m := range []Method{MethodWeightedBlend, MethodMaxPool, MethodHierarchical} {
			out, err := Compose([]*core.Tensor{low}, m, nil)
			require.NoError(t, err)
			assert.Equal(t, low, out)
			assert.NotSame(t, low, out)
		}
	})

	t.Run("blending identical tensors is identity", func(t *testing.T) {
		out, err := Compose([]*core.Tensor{high, high.Clone()}, MethodWeightedBlend, []float64{0.3, 0.9})
		require.NoError(t, err)
		assert.InDeltaSlice(t, high.Flatten(), out.Flatten(), 1e-12)
	})

	t.Run("weighted blend", func(t *testing.T) {
		out, err := Compose([]*core.Tensor{low, high}, MethodWeightedBlend, nil)
		require.NoError(t, err)
		assert.InDeltaSlice(t, filled(0.5).Flatten(), out.Flatten(), 1e-12)
	})

	t.Run("max pool", func(t *testing.T) {
		out, err := Compose([]*core.Tensor{high, low}, MethodMaxPool, nil)
		require.NoError(t, err)
		assert.Equal(t, high, out)
	})

	t.Run("hierarchical", func(t *testing.T) {
		override := filled(0)
		override.Biology[1] = 0.9
		out, err := Compose([]*core.Tensor{low, override}, MethodHierarchical, nil)
		require.NoError(t, err)
		want := low.Clone()
		want.Biology[1] = 0.9
		assert.Equal(t, want, out)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Compose([]*core.Tensor{low}, "average", nil)
		assert.ErrorIs(t, err, ErrUnknownMethod)
		_, err = Compose(nil, MethodMaxPool, nil)
		assert.ErrorIs(t, err, ErrEmptyComposition)
		_, err = Compose([]*core.Tensor{low, high}, MethodWeightedBlend, []float64{1})
		assert.ErrorIs(t, err, ErrWeightsMismatch)
		_, err = Compose([]*core.Tensor{low, {Context: []float64{1}}}, MethodMaxPool, nil)
		assert.ErrorIs(t, err, core.ErrInvalidTensorShape)
	})
}

func TestBlendWithScores(t *testing.T) {
	out, err := BlendWithScores([]*core.Tensor{filled(0), filled(1)}, []float64{0.25, 0.75})
	require.NoError(t, err)
	assert.InDeltaSlice(t, filled(0.75).Flatten(), out.Flatten(), 1e-12)

	_, err = BlendWithScores([]*core.Tensor{filled(0), filled(1)}, nil)
	assert.ErrorIs(t, err, ErrWeightsMismatch)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("max_pool")
	require.NoError(t, err)
	assert.Equal(t, MethodMaxPool, m)

	_, err = ParseMethod("median")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
