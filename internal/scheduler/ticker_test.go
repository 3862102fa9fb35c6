package scheduler

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

const testPeriod = 2 * time.Millisecond

func TestTicker_DefaultPeriod(t *testing.T) {
	tk := New(0, func(context.Context) error { return nil }, nil)
	assert.Equal(t, DefaultPeriod, tk.Period())
}

func TestTicker_StartStop(t *testing.T) {
	var calls atomic.Int64
	tk := New(testPeriod, func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	assert.False(t, tk.Running())
	require.True(t, tk.Start(context.Background()))
	assert.False(t, tk.Start(context.Background()), "second start is a no-op")
	assert.True(t, tk.Running())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	assert.True(t, tk.Stop())
	assert.False(t, tk.Running())
	assert.False(t, tk.Stop())

	after := calls.Load()
	time.Sleep(10 * testPeriod)
	assert.Equal(t, after, calls.Load(), "no ticks after Stop returns")

	total, failed := tk.Ticks()
	assert.Equal(t, after, total)
	assert.Zero(t, failed)
}

func TestTicker_TicksNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int64
	tk := New(time.Millisecond, func(context.Context) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		calls.Add(1)
		return nil
	}, nil)

	tk.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 5 }, 2*time.Second, time.Millisecond)
	tk.Stop()

	assert.Equal(t, int64(1), maxInFlight.Load())
}

func TestTicker_StopWaitsForInFlightTick(t *testing.T) {
	entered := make(chan struct{}, 1)
	var finished atomic.Bool
	tk := New(testPeriod, func(context.Context) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	}, nil)

	tk.Start(context.Background())
	<-entered
	tk.Stop()

	assert.True(t, finished.Load())
}

func TestTicker_FailingTickKeepsRunning(t *testing.T) {
	var calls atomic.Int64
	tk := New(testPeriod, func(context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}, nil)

	tk.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	tk.Stop()

	total, failed := tk.Ticks()
	assert.Equal(t, total, failed)
	assert.GreaterOrEqual(t, failed, int64(3))
}

func TestTicker_Toggle(t *testing.T) {
	tk := New(testPeriod, func(context.Context) error { return nil }, nil)

	assert.True(t, tk.Toggle(context.Background()))
	assert.True(t, tk.Running())
	assert.False(t, tk.Toggle(context.Background()))
	assert.False(t, tk.Running())
}

func TestTicker_ConcurrentToggles(t *testing.T) {
	tk := New(time.Hour, func(context.Context) error { return nil }, nil)

	const toggles = 20
	var started atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tk.Toggle(context.Background()) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(toggles/2), started.Load(), "toggles alternate between start and stop")
	assert.False(t, tk.Running())
}

func TestTicker_ContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tk := New(testPeriod, func(context.Context) error { return nil }, nil)

	tk.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return !tk.Running() }, time.Second, time.Millisecond)
	assert.True(t, tk.Start(context.Background()), "restart after cancellation")
	tk.Stop()
}

func TestTicker_SetPeriod(t *testing.T) {
	var calls atomic.Int64
	tk := New(time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	tk.Start(context.Background())
	tk.SetPeriod(context.Background(), testPeriod)

	assert.Equal(t, testPeriod, tk.Period())
	assert.True(t, tk.Running())
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	tk.Stop()

	tk.SetPeriod(context.Background(), -1)
	assert.Equal(t, DefaultPeriod, tk.Period())
	assert.False(t, tk.Running(), "a stopped ticker stays stopped")
}
