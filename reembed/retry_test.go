package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failTimes returns an operation that fails n times before succeeding.
func failTimes(n int, attempts *int) func(context.Context) error {
	return func(context.Context) error {
		*attempts++
		if *attempts <= n {
			return fmt.Errorf("transient failure %d", *attempts)
		}
		return nil
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		maxAttempts  int
		wantErr      bool
		wantAttempts int
	}{
		{"first try", 0, 3, false, 1},
		{"eventual success", 2, 5, false, 3},
		{"exhausted", 10, 3, true, 3},
		{"zero attempts", 0, 0, true, 0},
		{"negative attempts", 0, -1, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), failTimes(tt.failures, &attempts), tt.maxAttempts, time.Millisecond)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestRetryWithBackoff_ReturnsLastError(t *testing.T) {
	want := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), func(context.Context) error { return want }, 2, time.Millisecond)
	assert.Same(t, want, err)

	err = RetryWithBackoff(context.Background(), func(context.Context) error { return nil }, 0, time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestRetryWithBackoff_Context(t *testing.T) {
	t.Run("canceled between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := RetryWithBackoff(ctx, func(context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("error")
		}, 10, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})

	t.Run("timeout while waiting", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		attempts := 0
		err := RetryWithBackoff(ctx, func(context.Context) error {
			attempts++
			time.Sleep(30 * time.Millisecond)
			return errors.New("error")
		}, 10, 10*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.LessOrEqual(t, attempts, 3)
	})

	t.Run("context errors are not retried", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func(context.Context) error {
			attempts++
			return fmt.Errorf("embed: %w", context.DeadlineExceeded)
		}, 5, time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, attempts)
	})
}

func TestRetryWithBackoff_DelaysGrow(t *testing.T) {
	var stamps []time.Time
	attempts := 0
	op := failTimes(3, &attempts)
	err := RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		stamps = append(stamps, time.Now())
		return op(ctx)
	}, 5, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, stamps, 4)

	for i, base := range []time.Duration{10, 20, 40} {
		assert.GreaterOrEqual(t, stamps[i+1].Sub(stamps[i]), base*time.Millisecond, "delay %d", i)
	}
}
