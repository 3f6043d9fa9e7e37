package services

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// ProviderErrorFunc is notified when a provider reports a failed fetch
type ProviderErrorFunc func(providerID string, err error)

// RotationService connects content providers to the merger and the scheduler
type RotationService struct {
	mu        sync.Mutex
	merger    *SlideMerger
	scheduler *RotationScheduler
	providers []ports.ContentProvider
	unsubs    []func()
	started   bool
	closed    bool
	sweepDone chan struct{}
	onError   ProviderErrorFunc

	clock   ports.TimeProvider
	metrics ports.RotationMetrics
	logger  *slog.Logger
}

// NewRotationService creates a service feeding scheduler from providers in the given
// priority order. Every provider must appear in order exactly once; identifiers in order
// without a provider simply never contribute.
func NewRotationService(
	order []string,
	providers []ports.ContentProvider,
	scheduler *RotationScheduler,
	clock ports.TimeProvider,
	metrics ports.RotationMetrics,
	logger *slog.Logger,
) (*RotationService, error) {
	if scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if len(order) == 0 {
		return nil, errors.New("provider order cannot be empty")
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := position[id]; dup {
			return nil, fmt.Errorf("provider %q listed more than once in order", id)
		}
		position[id] = i
	}

	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if _, ok := position[p.ID()]; !ok {
			return nil, fmt.Errorf("provider %q is missing from provider order", p.ID())
		}
		if seen[p.ID()] {
			return nil, fmt.Errorf("provider %q registered twice", p.ID())
		}
		seen[p.ID()] = true
	}

	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Subscribe in priority order so initial snapshots arrive in a predictable sequence
	ordered := make([]ports.ContentProvider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return position[ordered[i].ID()] < position[ordered[j].ID()]
	})

	return &RotationService{
		merger:    NewSlideMerger(order),
		scheduler: scheduler,
		providers: ordered,
		clock:     clock,
		metrics:   metrics,
		logger:    logger.With("service", "rotation"),
	}, nil
}

// OnProviderError registers fn to be called for every failed provider snapshot
func (s *RotationService) OnProviderError(fn ProviderErrorFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// expirySweeperID is the scheduler subscription that drops expired slides between
// provider refreshes
const expirySweeperID = "rotation-expiry"

// Start subscribes to every provider and begins dropping expired slides on each tick
func (s *RotationService) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("rotation service closed")
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("rotation service already started")
	}
	s.started = true
	s.mu.Unlock()

	// Providers may deliver their first snapshot synchronously, so subscribe unlocked
	unsubs := make([]func(), 0, len(s.providers))
	for _, p := range s.providers {
		unsubs = append(unsubs, p.Subscribe(s.handleSnapshot))
		s.logger.Debug("Subscribed to provider", slog.String("provider", p.ID()))
	}

	ticks := s.scheduler.Subscribe(expirySweeperID)
	done := make(chan struct{})
	go s.sweepExpired(ticks, done)

	s.mu.Lock()
	s.unsubs = unsubs
	s.sweepDone = done
	closed := s.closed
	s.mu.Unlock()

	if closed {
		for _, unsub := range unsubs {
			unsub()
		}
	}

	return nil
}

// Close unsubscribes from all providers and disposes the scheduler. Safe to call twice.
func (s *RotationService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	sweepDone := s.sweepDone
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	// Dispose closes the sweeper's subscription, which ends it
	s.scheduler.Dispose()
	if sweepDone != nil {
		<-sweepDone
	}
	s.logger.Info("Rotation service closed")
}

// Snapshots returns the latest snapshot of each provider in priority order
func (s *RotationService) Snapshots() []entities.ProviderSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merger.Snapshots()
}

// Scheduler returns the scheduler driven by this service
func (s *RotationService) Scheduler() *RotationScheduler {
	return s.scheduler
}

// handleSnapshot rebuilds the rotation. It holds the service lock while handing the
// rotation to the scheduler so rebuilds reach it in the order snapshots arrived.
func (s *RotationService) handleSnapshot(snapshot entities.ProviderSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	failed := snapshot.Err != nil
	if failed {
		s.logger.Warn("Provider fetch failed, contributing no slides",
			slog.String("provider", snapshot.ProviderID),
			slog.String("error", snapshot.Err.Error()),
		)
		snapshot.Slides = nil
		if s.onError != nil {
			s.onError(snapshot.ProviderID, snapshot.Err)
		}
	}

	snapshot = snapshot.WithoutExpired(s.clock.Now())
	s.metrics.ObserveSnapshot(snapshot.ProviderID, snapshot.Len(), failed)

	rotation, ok := s.merger.Update(snapshot)
	if !ok {
		s.logger.Warn("Ignoring snapshot from unknown provider",
			slog.String("provider", snapshot.ProviderID),
		)
		return
	}

	s.logger.Debug("Rotation rebuilt",
		slog.String("provider", snapshot.ProviderID),
		slog.Int("provider_slides", snapshot.Len()),
		slog.Int("rotation_length", rotation.Len()),
	)

	s.scheduler.OnSnapshotChange(rotation)
}

// sweepExpired prunes the rotation on every tick until events is closed
func (s *RotationService) sweepExpired(events <-chan entities.RotationEvent, done chan struct{}) {
	defer close(done)

	for event := range events {
		if event.Cause == entities.CauseTick {
			s.pruneExpired()
		}
	}
}

// pruneExpired drops dynamic slides whose validity ended since their snapshot arrived
func (s *RotationService) pruneExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	now := s.clock.Now()
	dropped := 0
	for _, snapshot := range s.merger.Snapshots() {
		pruned := snapshot.WithoutExpired(now)
		if pruned.Len() == snapshot.Len() {
			continue
		}
		dropped += snapshot.Len() - pruned.Len()
		s.merger.Update(pruned)
	}

	if dropped == 0 {
		return
	}

	rotation := s.merger.Rotation()
	s.logger.Debug("Expired slides dropped",
		slog.Int("dropped", dropped),
		slog.Int("rotation_length", rotation.Len()),
	)
	s.scheduler.OnSnapshotChange(rotation)
}
