// Package ticker runs the once-per-second refresh of live counters.
package ticker

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the refresh period of the live counters.
const DefaultInterval = time.Second

// Ticker runs at most one recurring callback at a time. Starting a new run
// always stops the previous one first, so tickers never stack up.
type Ticker struct {
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped ticker. A non-positive interval means DefaultInterval
// and a nil now means time.Now.
func New(interval time.Duration, now func() time.Time) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Ticker{interval: interval, now: now}
}

// Start stops any running callback and then calls fn once immediately and
// again on every interval until Stop, a later Start, or ctx is done.
//
// Start and Stop wait for the previous goroutine to exit, so fn must not be
// running under a lock that the caller of Start or Stop holds.
func (t *Ticker) Start(ctx context.Context, fn func(now time.Time)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(runCtx, done, fn)
}

// Stop cancels the running callback, if any, and waits for it to exit. It is
// safe to call repeatedly.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Running reports whether a callback is scheduled.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
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

func (t *Ticker) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
}

func (t *Ticker) run(ctx context.Context, done chan struct{}, fn func(time.Time)) {
	defer close(done)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	fn(t.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if ctx.Err() != nil {
				return
			}
			fn(t.now())
		}
	}
}
