// Package scheduler drives a unit of work at a fixed period.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultPeriod is the tick period used when none is configured
const DefaultPeriod = time.Second

// TickFunc is the work performed once per tick
type TickFunc func(ctx context.Context) error

// Ticker calls a TickFunc once per period on a single goroutine. A tick
// never overlaps the previous one: when the work takes longer than the
// period, missed ticks are dropped rather than queued.
type Ticker struct {
	fn     TickFunc
	logger *zap.Logger

	mu     sync.Mutex
	period time.Duration
	cancel context.CancelFunc
	done   chan struct{}

	ticks    atomic.Int64
	failures atomic.Int64
}

// New creates a stopped ticker. A non-positive period means DefaultPeriod.
func New(period time.Duration, fn TickFunc, logger *zap.Logger) *Ticker {
	if period <= 0 {
		period = DefaultPeriod
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{
		fn:     fn,
		period: period,
		logger: logger.Named("scheduler"),
	}
}

// Start begins ticking until Stop is called or ctx is cancelled. It reports
// false if the ticker was already running.
func (t *Ticker) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runningLocked() {
		return false
	}
	t.startLocked(ctx)
	t.logger.Info("started", zap.Duration("period", t.period))
	return true
}

// Stop cancels the loop and waits for an in-flight tick to return. It
// reports false if the ticker was not running.
func (t *Ticker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

// Toggle starts a stopped ticker or stops a running one and returns the
// new running state.
func (t *Ticker) Toggle(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runningLocked() {
		t.stopLocked()
		return false
	}
	t.startLocked(ctx)
	t.logger.Info("started", zap.Duration("period", t.period))
	return true
}

// Running reports whether the loop is active
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked()
}

// Period returns the configured tick period
func (t *Ticker) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

// SetPeriod changes the tick period. A running loop is restarted under ctx
// so the change applies immediately.
func (t *Ticker) SetPeriod(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultPeriod
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if period == t.period {
		return
	}
	t.period = period

	if t.stopLocked() {
		t.startLocked(ctx)
		t.logger.Info("restarted", zap.Duration("period", period))
	}
}

// Ticks returns the number of completed ticks and how many of them failed
func (t *Ticker) Ticks() (total, failed int64) {
	return t.ticks.Load(), t.failures.Load()
}

func (t *Ticker) runningLocked() bool {
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func (t *Ticker) startLocked(ctx context.Context) {
	// a loop that exited on its own still holds done and cancel
	t.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(loopCtx, t.period, t.done)
}

func (t *Ticker) stopLocked() bool {
	if t.done == nil {
		return false
	}
	wasRunning := t.runningLocked()
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil

	if wasRunning {
		t.logger.Info("stopped")
	}
	return wasRunning
}

func (t *Ticker) loop(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	err := t.fn(ctx)
	t.ticks.Add(1)
	if err != nil {
		t.failures.Add(1)
		t.logger.Warn("tick failed", zap.Error(err))
	}
}
