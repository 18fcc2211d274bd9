package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelVisitsEveryInput(t *testing.T) {
	var sum, running, peak atomic.Int64
	inputs := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	err := Parallel(context.Background(), inputs, 3, func(_ context.Context, n int64) error {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		sum.Add(n)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(55), sum.Load())
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestParallelJoinsErrorsAndKeepsGoing(t *testing.T) {
	var calls atomic.Int32
	bad := errors.New("bad")
	err := Parallel(context.Background(), []int{1, 2, 3, 4}, 2, func(_ context.Context, n int) error {
		calls.Add(1)
		if n%2 == 0 {
			return bad
		}
		return nil
	})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, int32(4), calls.Load())
}

func TestParallelEmptyAndCancelled(t *testing.T) {
	require.NoError(t, Parallel(context.Background(), []int(nil), 4, func(context.Context, int) error {
		t.Fatal("called")
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Parallel(ctx, []int{1, 2, 3}, 1, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
