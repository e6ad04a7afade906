package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesAllItems(t *testing.T) {
	var sum atomic.Int64
	var wg sync.WaitGroup

	p := NewPool(func(_ context.Context, n int64) error {
		defer wg.Done()
		sum.Add(n)
		return nil
	}, WithWorkers[int64](3))
	require.NoError(t, p.Start(context.Background()))

	for i := int64(1); i <= 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(i))
	}
	wg.Wait()
	require.NoError(t, p.Stop(time.Second))

	assert.Equal(t, int64(5050), sum.Load())
	stats := p.Stats()
	assert.Equal(t, int64(100), stats.Submitted)
	assert.Equal(t, int64(100), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestPoolCountsFailures(t *testing.T) {
	var wg sync.WaitGroup
	p := NewPool(func(_ context.Context, fail bool) error {
		defer wg.Done()
		if fail {
			return errors.New("boom")
		}
		return nil
	}, WithWorkers[bool](1))
	require.NoError(t, p.Start(context.Background()))

	for _, fail := range []bool{true, false, true} {
		wg.Add(1)
		require.NoError(t, p.Submit(fail))
	}
	wg.Wait()
	require.NoError(t, p.Stop(time.Second))

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestPoolDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	p := NewPool(func(_ context.Context, _ int) error {
		<-block
		return nil
	}, WithWorkers[int](1), WithQueueSize[int](1))
	require.NoError(t, p.Start(context.Background()))
	defer func() {
		close(block)
		_ = p.Stop(time.Second)
	}()

	// First item occupies the worker, second fills the queue; after that
	// every submit must be rejected without blocking.
	require.NoError(t, p.Submit(1))
	require.Eventually(t, func() bool { return p.Stats().QueueDepth == 0 },
		time.Second, time.Millisecond, "worker should pick up the first item")
	require.NoError(t, p.Submit(2))

	err := p.Submit(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().Dropped)
}

func TestPoolLifecycleErrors(t *testing.T) {
	p := NewPool(func(_ context.Context, _ int) error { return nil })

	assert.ErrorIs(t, p.Submit(1), ErrNotStarted)

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, p.Stop(time.Second))
	assert.ErrorIs(t, p.Submit(1), ErrStopped)
	assert.NoError(t, p.Stop(time.Second), "second stop is a no-op")
}

func TestPoolNilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() { NewPool[int](nil) })
}

func TestPoolStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(func(_ context.Context, _ int) error { return nil })
	require.NoError(t, p.Start(ctx))

	cancel()
	assert.NoError(t, p.Stop(time.Second))
}

func TestPoolRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var wg sync.WaitGroup
	p := NewPool(func(_ context.Context, _ int) error {
		defer wg.Done()
		return nil
	}, WithRegisterer[int](reg, "gesture_match_requests"))
	require.NoError(t, p.Start(context.Background()))

	wg.Add(1)
	require.NoError(t, p.Submit(1))
	wg.Wait()
	require.NoError(t, p.Stop(time.Second))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gesture_match_requests_submitted_total"])
	assert.True(t, names["gesture_match_requests_processed_total"])
}
