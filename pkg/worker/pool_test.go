package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ProcessesSubmittedWork(t *testing.T) {
	var processed int64
	pool := NewPool(2, 16, func(_ context.Context, _ int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(i))
	}

	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int64(10), atomic.LoadInt64(&processed))

	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	err := pool.Submit(1)
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestPool_DoubleStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	defer func() { _ = pool.Stop(time.Second) }()

	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
}

func TestPool_QueueFullDropsWork(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// Worker takes the first item and blocks; second fills the queue;
	// eventually a submit must fail with ErrQueueFull
	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := pool.Submit(i); errors.Is(err, ErrQueueFull) {
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull, "expected ErrQueueFull once queue saturated")
	assert.Greater(t, pool.Stats().Dropped, int64(0))

	close(block)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_CountsFailures(t *testing.T) {
	pool := NewPool(1, 8, func(_ context.Context, n int) error {
		if n%2 == 0 {
			return errors.New("even numbers fail")
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(6), stats.Processed)
	assert.Equal(t, int64(3), stats.Failed)
}

func TestPool_NilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewPool[int](1, 1, nil)
	})
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed int64
	pool := NewPool(4, 128, func(_ context.Context, _ int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				_ = pool.Submit(j)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, stats.Processed, atomic.LoadInt64(&processed))
	assert.Equal(t, int64(128), stats.Submitted+stats.Dropped)
}
