package ports

import "time"

// TimeProvider supplies the current time and tickers. The scheduler and the polling
// providers take one so tests can fire ticks by hand.
type TimeProvider interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the part of time.Ticker the rotation needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealTimeProvider reads the wall clock
type RealTimeProvider struct{}

// NewRealTimeProvider creates a wall-clock time provider
func NewRealTimeProvider() TimeProvider {
	return RealTimeProvider{}
}

// Now returns the current time
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// NewTicker starts a ticker firing every d
func (RealTimeProvider) NewTicker(d time.Duration) Ticker {
	return realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t realTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t realTicker) Stop() {
	t.ticker.Stop()
}
