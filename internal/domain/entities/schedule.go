package entities

import "time"

// SchedulerPhase is the state of the rotation scheduler
type SchedulerPhase string

const (
	// PhaseIdle means the rotation is empty and no timer runs
	PhaseIdle SchedulerPhase = "idle"

	// PhaseActive means the rotation has slides and the timer is running
	PhaseActive SchedulerPhase = "active"

	// PhaseDisposed means the scheduler was shut down
	PhaseDisposed SchedulerPhase = "disposed"
)

// ScheduleState is a read-only view of the scheduler
type ScheduleState struct {
	Phase          SchedulerPhase `json:"phase"`
	ActiveIndex    int            `json:"activeIndex"`
	RotationLength int            `json:"rotationLength"`
	TickInterval   time.Duration  `json:"tickInterval"`
	Ticks          uint64         `json:"ticks"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// HasActiveSlide returns true when a slide is on display
func (s ScheduleState) HasActiveSlide() bool {
	return s.Phase == PhaseActive && s.RotationLength > 0
}

// Navigation causes attached to rotation events
const (
	CauseTick     = "tick"
	CauseAdvance  = "advance"
	CauseRetreat  = "retreat"
	CauseJump     = "jump"
	CauseSnapshot = "snapshot"
	CauseDispose  = "dispose"
)

// RotationEvent is published to subscribers whenever the schedule state changes
type RotationEvent struct {
	Type      string        `json:"type"`
	Cause     string        `json:"cause"`
	State     ScheduleState `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewRotationEvent creates a state event
func NewRotationEvent(cause string, state ScheduleState, at time.Time) RotationEvent {
	return RotationEvent{
		Type:      "state",
		Cause:     cause,
		State:     state,
		Timestamp: at,
	}
}
