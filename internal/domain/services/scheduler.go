package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// subscriberBuffer is the per-client event backlog before events are dropped
const subscriberBuffer = 16

// RotationScheduler owns the active index into the rotation, advances it on a timer and
// accepts manual navigation. Timer ticks, navigation and snapshot changes are serialized
// by a single mutex, so every step is applied exactly once in arrival order.
type RotationScheduler struct {
	mu        sync.Mutex
	rotation  entities.Rotation
	index     int
	phase     entities.SchedulerPhase
	ticks     uint64
	updatedAt time.Time

	interval time.Duration
	clock    ports.TimeProvider
	ticker   ports.Ticker
	tickStop chan struct{}
	// timerGen identifies the running timer; ticks from a replaced timer are ignored
	timerGen uint64

	clients map[string]chan entities.RotationEvent
	metrics ports.RotationMetrics
	logger  *slog.Logger
}

// NewRotationScheduler creates an idle scheduler that advances every interval once it
// receives a non-empty rotation
func NewRotationScheduler(
	interval time.Duration,
	clock ports.TimeProvider,
	metrics ports.RotationMetrics,
	logger *slog.Logger,
) *RotationScheduler {
	if interval < entities.MinTickInterval {
		interval = entities.MinTickInterval
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

	return &RotationScheduler{
		phase:     entities.PhaseIdle,
		interval:  interval,
		clock:     clock,
		updatedAt: clock.Now(),
		clients:   make(map[string]chan entities.RotationEvent),
		metrics:   metrics,
		logger:    logger.With("service", "rotation_scheduler"),
	}
}

// OnSnapshotChange installs a freshly merged rotation. The timer only starts or stops on
// transitions between an empty and a non-empty rotation; content changes while active
// keep the timer phase untouched.
func (s *RotationScheduler) OnSnapshotChange(rotation entities.Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == entities.PhaseDisposed {
		return
	}

	s.rotation = rotation
	length := rotation.Len()

	switch {
	case length == 0:
		if s.phase == entities.PhaseActive {
			s.stopTimerLocked()
			s.phase = entities.PhaseIdle
			s.logger.Info("Rotation emptied, scheduler idle")
		}
		s.index = 0

	case s.phase == entities.PhaseIdle:
		s.index = 0
		s.phase = entities.PhaseActive
		s.startTimerLocked()
		s.logger.Info("Rotation filled, scheduler active",
			slog.Int("rotation_length", length),
			slog.Duration("tick_interval", s.interval),
		)

	default:
		if s.index >= length {
			s.index = 0
		}
	}

	s.metrics.ObserveRotationLength(length)
	s.publishLocked(entities.CauseSnapshot)
}

// Advance moves to the next slide, wrapping at the end. No-op when idle.
func (s *RotationScheduler) Advance() {
	s.navigate(entities.CauseAdvance, func(index, length int) int {
		return (index + 1) % length
	})
}

// Retreat moves to the previous slide, wrapping at the start. No-op when idle.
func (s *RotationScheduler) Retreat() {
	s.navigate(entities.CauseRetreat, func(index, length int) int {
		return (index - 1 + length) % length
	})
}

// JumpTo activates slide i. Out-of-range indices are ignored.
func (s *RotationScheduler) JumpTo(i int) {
	s.navigate(entities.CauseJump, func(index, length int) int {
		if i < 0 || i >= length {
			return index
		}
		return i
	})
}

// CurrentSlide returns the active rotation entry, or false when no slide is active
func (s *RotationScheduler) CurrentSlide() (entities.RotationEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != entities.PhaseActive {
		return entities.RotationEntry{}, false
	}

	entry, err := s.rotation.At(s.index)
	if err != nil {
		return entities.RotationEntry{}, false
	}
	return entry, true
}

// State returns a copy of the schedule state
func (s *RotationScheduler) State() entities.ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// View returns the schedule state together with the rotation it indexes into, read
// under one lock so the index is always valid for the rotation
func (s *RotationScheduler) View() (entities.ScheduleState, entities.Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(), s.rotation
}

// Rotation returns the rotation being scheduled
func (s *RotationScheduler) Rotation() entities.Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// Subscribe registers a client for state events. Slow clients miss events rather than
// blocking the scheduler. A disposed scheduler returns a closed channel.
func (s *RotationScheduler) Subscribe(clientID string) <-chan entities.RotationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan entities.RotationEvent, subscriberBuffer)
	if s.phase == entities.PhaseDisposed {
		close(ch)
		return ch
	}

	if old, exists := s.clients[clientID]; exists {
		close(old)
	}
	s.clients[clientID] = ch

	return ch
}

// Unsubscribe removes a client and closes its channel
func (s *RotationScheduler) Unsubscribe(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, exists := s.clients[clientID]; exists {
		close(ch)
		delete(s.clients, clientID)
	}
}

// Dispose stops the timer, publishes a final disposed state and closes all
// subscriptions. The timer is released exactly once; later calls are no-ops, as are
// ticks already in flight.
func (s *RotationScheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == entities.PhaseDisposed {
		return
	}

	s.stopTimerLocked()
	s.phase = entities.PhaseDisposed
	s.publishLocked(entities.CauseDispose)

	for clientID, ch := range s.clients {
		close(ch)
		delete(s.clients, clientID)
	}

	s.logger.Info("Scheduler disposed", slog.Uint64("ticks", s.ticks))
}

func (s *RotationScheduler) navigate(cause string, step func(index, length int) int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != entities.PhaseActive {
		return
	}

	next := step(s.index, s.rotation.Len())
	s.metrics.ObserveNavigation(cause)
	if next == s.index && cause == entities.CauseJump {
		return
	}

	s.index = next
	s.publishLocked(cause)
}

// tick applies one automatic advance if gen still names the running timer
func (s *RotationScheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != entities.PhaseActive || gen != s.timerGen || s.ticker == nil {
		return
	}

	s.index = (s.index + 1) % s.rotation.Len()
	s.ticks++
	s.metrics.ObserveTick()
	s.publishLocked(entities.CauseTick)
}

func (s *RotationScheduler) startTimerLocked() {
	s.stopTimerLocked()

	s.timerGen++
	gen := s.timerGen
	ticker := s.clock.NewTicker(s.interval)
	stop := make(chan struct{})

	s.ticker = ticker
	s.tickStop = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				s.tick(gen)
			}
		}
	}()
}

func (s *RotationScheduler) stopTimerLocked() {
	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	close(s.tickStop)
	s.ticker = nil
	s.tickStop = nil
}

func (s *RotationScheduler) stateLocked() entities.ScheduleState {
	return entities.ScheduleState{
		Phase:          s.phase,
		ActiveIndex:    s.index,
		RotationLength: s.rotation.Len(),
		TickInterval:   s.interval,
		Ticks:          s.ticks,
		UpdatedAt:      s.updatedAt,
	}
}

func (s *RotationScheduler) publishLocked(cause string) {
	now := s.clock.Now()
	s.updatedAt = now
	event := entities.NewRotationEvent(cause, s.stateLocked(), now)

	for clientID, ch := range s.clients {
		select {
		case ch <- event:
		default:
			s.logger.Warn("Subscriber is slow, dropping event",
				slog.String("client_id", clientID),
				slog.String("cause", cause),
			)
		}
	}
}

var _ ports.RotationPresenter = (*RotationScheduler)(nil)
