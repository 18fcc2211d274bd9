package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAsyncRejectsDuplicateName(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	block := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	require.NoError(t, m.StartAsync(ctx, "sweep", block))
	assert.Error(t, m.StartAsync(ctx, "sweep", block))
	assert.Equal(t, []string{"sweep"}, m.List())

	require.NoError(t, m.StopWait(ctx, "sweep"))
	assert.Empty(t, m.List())
}

func TestStopWaitBlocksUntilRunnerReturns(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	var finished bool
	require.NoError(t, m.StartAsync(ctx, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished = true
		return nil
	}))

	require.NoError(t, m.StopWait(ctx, "slow"))
	assert.True(t, finished)
}

func TestStopUnknownJob(t *testing.T) {
	m := NewManager(nil)
	err := m.Stop("missing")
	assert.True(t, errors.Is(err, ErrNotRunning))
}

func TestReporterSeesLifecycle(t *testing.T) {
	var mu sync.Mutex
	var events []string
	m := NewManager(func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})

	done := make(chan struct{})
	require.NoError(t, m.StartAsync(context.Background(), "fail", func(ctx context.Context) error {
		defer close(done)
		return errors.New("boom")
	}))
	<-done

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"running:fail", "error:fail:boom"}, events)
}
