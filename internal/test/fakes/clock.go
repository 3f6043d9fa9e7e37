package fakes

import (
	"sync"
	"time"

	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// Clock is a manually driven ports.TimeProvider
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*Ticker
}

// NewClock creates a clock frozen at now
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the frozen time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward without firing tickers
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewTicker creates a ticker that only fires through Fire
func (c *Clock) NewTicker(d time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &Ticker{interval: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tickers returns every ticker created so far
func (c *Clock) Tickers() []*Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]*Ticker, len(c.tickers))
	copy(cp, c.tickers)
	return cp
}

// LastTicker returns the most recently created ticker, or nil
func (c *Clock) LastTicker() *Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

// Ticker is a fake ports.Ticker
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	ch       chan time.Time
	stopped  bool
	stops    int
}

// C returns the tick channel
func (t *Ticker) C() <-chan time.Time {
	return t.ch
}

// Stop stops the ticker; Fire is ignored afterwards
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.stops++
}

// Fire delivers one tick. Like time.Ticker it drops the tick when one is already pending,
// and it reports false when the ticker is stopped or the tick was dropped.
func (t *Ticker) Fire(at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	select {
	case t.ch <- at:
		return true
	default:
		return false
	}
}

// Stopped reports whether Stop was called
func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// StopCount returns how many times Stop was called
func (t *Ticker) StopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// Interval returns the interval the ticker was created with
func (t *Ticker) Interval() time.Duration {
	return t.interval
}
