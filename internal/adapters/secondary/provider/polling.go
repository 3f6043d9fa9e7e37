package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// PollingOptions configures a PollingProvider
type PollingOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    ports.TimeProvider
	Logger   *slog.Logger
}

// PollingProvider re-fetches slides on an interval while it has subscribers. A failed
// fetch is published as an empty snapshot carrying the error.
type PollingProvider struct {
	id       string
	fetcher  ports.SlideFetcher
	interval time.Duration
	timeout  time.Duration
	clock    ports.TimeProvider
	logger   *slog.Logger
	subs     *subscribers

	mu     sync.Mutex
	last   *entities.ProviderSnapshot
	cancel context.CancelFunc
	done   chan struct{}

	// fetchMu serializes fetches so snapshots are published in fetch order
	fetchMu sync.Mutex
}

// NewPollingProvider creates a provider named id backed by fetcher
func NewPollingProvider(id string, fetcher ports.SlideFetcher, opts PollingOptions) *PollingProvider {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = ports.NewRealTimeProvider()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &PollingProvider{
		id:       id,
		fetcher:  fetcher,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		logger:   opts.Logger.With("service", "provider", "provider", id),
		subs:     newSubscribers(),
	}
}

// ID returns the provider identifier
func (p *PollingProvider) ID() string {
	return p.id
}

// Subscribe registers fn. The first subscriber starts the polling loop, which fetches
// immediately; later subscribers receive the latest snapshot synchronously.
func (p *PollingProvider) Subscribe(fn ports.SnapshotFunc) func() {
	p.mu.Lock()
	id, sub, first := p.subs.add(fn)
	cached := p.last
	if first {
		p.startLocked()
	}
	p.mu.Unlock()

	if !first && cached != nil {
		sub.deliver(*cached)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.subs.remove(id) == 0 {
				p.stopLocked()
			}
		})
	}
}

// Refresh fetches once and publishes the result to subscribers. The result is discarded
// when ctx is cancelled before the fetch returns.
func (p *PollingProvider) Refresh(ctx context.Context) entities.ProviderSnapshot {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	snapshot := p.fetch(ctx)

	// Checked under mu: stopLocked cancels the loop context while holding it, so a
	// result from a stopped loop can never be cached after the stop cleared the cache
	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return snapshot
	}
	unchanged := p.last != nil && sameSnapshot(*p.last, snapshot)
	p.last = &snapshot
	p.mu.Unlock()

	if unchanged {
		p.logger.Debug("Snapshot unchanged, not publishing")
		return snapshot
	}

	p.subs.broadcast(snapshot)
	return snapshot
}

// Stop halts the polling loop and waits for it to exit. Subscriptions stay registered.
func (p *PollingProvider) Stop() {
	p.mu.Lock()
	done := p.done
	p.stopLocked()
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (p *PollingProvider) fetch(ctx context.Context) entities.ProviderSnapshot {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := p.clock.Now()
	slides, err := p.fetcher.FetchSlides(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("fetch timed out after %v: %w", p.timeout, err)
		}
		p.logger.Warn("Fetch failed", slog.String("error", err.Error()))
		return entities.FailedSnapshot(p.id, err, started)
	}

	valid := make([]entities.Slide, 0, len(slides))
	for _, slide := range slides {
		if err := slide.Validate(); err != nil {
			p.logger.Warn("Dropping invalid slide",
				slog.String("slide_id", slide.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		valid = append(valid, slide)
	}

	p.logger.Debug("Fetched slides", slog.Int("count", len(valid)))
	return entities.NewSnapshot(p.id, valid, started)
}

func (p *PollingProvider) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		p.pollLoop(ctx)
	}()
}

// stopLocked cancels the loop and forgets the cached snapshot, so the first fetch of
// a restarted loop is always published to the new subscribers
func (p *PollingProvider) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.done = nil
	p.last = nil
}

func (p *PollingProvider) pollLoop(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			p.Refresh(ctx)
		}
	}
}

// sameSnapshot reports whether b would leave the rotation exactly as a did
func sameSnapshot(a, b entities.ProviderSnapshot) bool {
	if a.Err != nil || b.Err != nil {
		return false
	}
	if len(a.Slides) == 0 && len(b.Slides) == 0 {
		return true
	}
	return reflect.DeepEqual(a.Slides, b.Slides)
}

var _ ports.ContentProvider = (*PollingProvider)(nil)
