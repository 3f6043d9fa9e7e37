package entities

import (
	"fmt"
	"time"
)

// ProviderSnapshot is the ordered output of one provider at a point in time.
// A new snapshot replaces the provider's previous one wholesale.
type ProviderSnapshot struct {
	ProviderID string    `json:"providerId"`
	Slides     []Slide   `json:"slides"`
	FetchedAt  time.Time `json:"fetchedAt"`

	// Err is set when the provider failed to produce content; Slides is empty then
	Err error `json:"-"`
}

// NewSnapshot creates a snapshot stamped with the given time
func NewSnapshot(providerID string, slides []Slide, at time.Time) ProviderSnapshot {
	return ProviderSnapshot{
		ProviderID: providerID,
		Slides:     slides,
		FetchedAt:  at,
	}
}

// FailedSnapshot creates the empty snapshot a provider contributes when a fetch fails
func FailedSnapshot(providerID string, err error, at time.Time) ProviderSnapshot {
	return ProviderSnapshot{
		ProviderID: providerID,
		FetchedAt:  at,
		Err:        err,
	}
}

// Len returns the number of slides in the snapshot
func (p ProviderSnapshot) Len() int {
	return len(p.Slides)
}

// WithoutExpired returns a copy of the snapshot minus slides expired at t
func (p ProviderSnapshot) WithoutExpired(t time.Time) ProviderSnapshot {
	kept := make([]Slide, 0, len(p.Slides))
	for _, slide := range p.Slides {
		if !slide.ExpiredAt(t) {
			kept = append(kept, slide)
		}
	}
	p.Slides = kept
	return p
}

// RotationEntry is a slide positioned in the rotation, tagged with its source
type RotationEntry struct {
	Slide      Slide  `json:"slide"`
	ProviderID string `json:"providerId"`
}

// Rotation is the merged, ordered list of all current slides. It is rebuilt on every
// snapshot change and must not be modified after construction.
type Rotation struct {
	entries []RotationEntry
}

// NewRotation wraps entries in a Rotation, copying the slice
func NewRotation(entries []RotationEntry) Rotation {
	cp := make([]RotationEntry, len(entries))
	copy(cp, entries)
	return Rotation{entries: cp}
}

// Len returns the rotation length
func (r Rotation) Len() int {
	return len(r.entries)
}

// IsEmpty returns true when no provider contributes slides
func (r Rotation) IsEmpty() bool {
	return len(r.entries) == 0
}

// At returns the entry at index i
func (r Rotation) At(i int) (RotationEntry, error) {
	if i < 0 || i >= len(r.entries) {
		return RotationEntry{}, fmt.Errorf("rotation index %d out of range (0-%d)", i, len(r.entries)-1)
	}
	return r.entries[i], nil
}

// Entries returns a copy of the rotation entries
func (r Rotation) Entries() []RotationEntry {
	cp := make([]RotationEntry, len(r.entries))
	copy(cp, r.entries)
	return cp
}

// Slides returns the slides in rotation order
func (r Rotation) Slides() []Slide {
	slides := make([]Slide, len(r.entries))
	for i, e := range r.entries {
		slides[i] = e.Slide
	}
	return slides
}
