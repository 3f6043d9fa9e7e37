package services

import (
	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// MergeSnapshots concatenates snapshots into a rotation. Snapshots contribute in the order
// given and slides keep their order within a snapshot. Empty snapshots contribute nothing
// and identical slides from different providers are all kept.
func MergeSnapshots(snapshots []entities.ProviderSnapshot) entities.Rotation {
	total := 0
	for _, snap := range snapshots {
		total += len(snap.Slides)
	}

	entries := make([]entities.RotationEntry, 0, total)
	for _, snap := range snapshots {
		for _, slide := range snap.Slides {
			entries = append(entries, entities.RotationEntry{
				Slide:      slide,
				ProviderID: snap.ProviderID,
			})
		}
	}

	return entities.NewRotation(entries)
}

// SlideMerger keeps the latest snapshot of each provider and rebuilds the rotation in a
// fixed provider-priority order. It is not safe for concurrent use.
type SlideMerger struct {
	order     []string
	snapshots map[string]entities.ProviderSnapshot
}

// NewSlideMerger creates a merger for the given provider priority order
func NewSlideMerger(order []string) *SlideMerger {
	cp := make([]string, len(order))
	copy(cp, order)

	return &SlideMerger{
		order:     cp,
		snapshots: make(map[string]entities.ProviderSnapshot, len(order)),
	}
}

// Update replaces the snapshot of its provider and returns the rebuilt rotation.
// Snapshots from providers outside the priority order are rejected.
func (m *SlideMerger) Update(snapshot entities.ProviderSnapshot) (entities.Rotation, bool) {
	if !m.knows(snapshot.ProviderID) {
		return m.Rotation(), false
	}

	m.snapshots[snapshot.ProviderID] = snapshot
	return m.Rotation(), true
}

// Rotation merges the current snapshots
func (m *SlideMerger) Rotation() entities.Rotation {
	return MergeSnapshots(m.Snapshots())
}

// Snapshots returns the current snapshots in priority order, skipping providers that
// have not reported yet
func (m *SlideMerger) Snapshots() []entities.ProviderSnapshot {
	ordered := make([]entities.ProviderSnapshot, 0, len(m.snapshots))
	for _, id := range m.order {
		if snap, ok := m.snapshots[id]; ok {
			ordered = append(ordered, snap)
		}
	}
	return ordered
}

// Order returns the provider priority order
func (m *SlideMerger) Order() []string {
	cp := make([]string, len(m.order))
	copy(cp, m.order)
	return cp
}

func (m *SlideMerger) knows(providerID string) bool {
	for _, id := range m.order {
		if id == providerID {
			return true
		}
	}
	return false
}
