package ports

import "github.com/fredcamaral/bulletin/internal/domain/entities"

// RotationReader exposes the schedule to presentation layers without mutation rights
type RotationReader interface {
	// CurrentSlide returns the active slide, or false when the rotation is empty
	CurrentSlide() (entities.RotationEntry, bool)

	// State returns a copy of the schedule state
	State() entities.ScheduleState

	// Rotation returns the rotation currently being scheduled
	Rotation() entities.Rotation

	// View returns state and rotation read atomically
	View() (entities.ScheduleState, entities.Rotation)
}

// RotationNavigator accepts manual navigation commands
type RotationNavigator interface {
	Advance()
	Retreat()
	JumpTo(index int)
}

// RotationPresenter is everything a presenter may do with the scheduler
type RotationPresenter interface {
	RotationReader
	RotationNavigator

	// Subscribe returns a channel receiving state events for clientID
	Subscribe(clientID string) <-chan entities.RotationEvent

	// Unsubscribe stops delivery to clientID and closes its channel
	Unsubscribe(clientID string)
}

// RotationMetrics records scheduler activity
type RotationMetrics interface {
	ObserveTick()
	ObserveNavigation(action string)
	ObserveRotationLength(length int)
	ObserveSnapshot(providerID string, slides int, failed bool)
}

// NopMetrics discards all observations
type NopMetrics struct{}

func (NopMetrics) ObserveTick() {}
func (NopMetrics) ObserveNavigation(string) {}
func (NopMetrics) ObserveRotationLength(int) {}
func (NopMetrics) ObserveSnapshot(string, int, bool) {}
