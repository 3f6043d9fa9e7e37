package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/test/builders"
)

func slideIDs(r entities.Rotation) []string {
	ids := make([]string, 0, r.Len())
	for _, e := range r.Entries() {
		ids = append(ids, e.Slide.ID)
	}
	return ids
}

func TestMergeSnapshots(t *testing.T) {
	t.Run("keeps provider order and in-snapshot order", func(t *testing.T) {
		banner := builders.NewSnapshotBuilder("banner").WithStatic(2).Build()
		birthdays := builders.NewSnapshotBuilder("birthdays").WithStatic(1).Build()

		rotation := MergeSnapshots([]entities.ProviderSnapshot{banner, birthdays})

		assert.Equal(t, []string{"banner-0", "banner-1", "birthdays-0"}, slideIDs(rotation))

		entry, err := rotation.At(2)
		require.NoError(t, err)
		assert.Equal(t, "birthdays", entry.ProviderID)
	})

	t.Run("empty snapshot contributes nothing", func(t *testing.T) {
		banner := builders.NewSnapshotBuilder("banner").WithStatic(3).Build()
		empty := builders.NewSnapshotBuilder("birthdays").Build()

		rotation := MergeSnapshots([]entities.ProviderSnapshot{empty, banner, empty})

		assert.Equal(t, 3, rotation.Len())
	})

	t.Run("no snapshots yields empty rotation", func(t *testing.T) {
		rotation := MergeSnapshots(nil)
		assert.True(t, rotation.IsEmpty())
		_, err := rotation.At(0)
		assert.Error(t, err)
	})

	t.Run("identical slides from different providers are both kept", func(t *testing.T) {
		slide := builders.NewSlideBuilder().WithID("same").Build()
		a := builders.NewSnapshotBuilder("a").WithSlides(slide).Build()
		b := builders.NewSnapshotBuilder("b").WithSlides(slide).Build()

		rotation := MergeSnapshots([]entities.ProviderSnapshot{a, b})

		assert.Equal(t, []string{"same", "same"}, slideIDs(rotation))
	})

	t.Run("merging twice yields identical rotations", func(t *testing.T) {
		snaps := []entities.ProviderSnapshot{
			builders.NewSnapshotBuilder("banner").WithStatic(3).Build(),
			builders.NewSnapshotBuilder("notices").WithStatic(2).Build(),
		}

		first := MergeSnapshots(snaps)
		second := MergeSnapshots(snaps)

		assert.Equal(t, first.Entries(), second.Entries())
	})

	t.Run("rotation is isolated from later snapshot edits", func(t *testing.T) {
		snap := builders.NewSnapshotBuilder("banner").WithStatic(2).Build()
		rotation := MergeSnapshots([]entities.ProviderSnapshot{snap})

		snap.Slides[0].ID = "mutated"

		assert.Equal(t, "banner-0", rotation.Slides()[0].ID)
	})
}

func TestSlideMerger(t *testing.T) {
	t.Run("rebuilds in priority order regardless of arrival order", func(t *testing.T) {
		m := NewSlideMerger([]string{"banner", "birthdays", "notices"})

		_, ok := m.Update(builders.NewSnapshotBuilder("notices").WithStatic(1).Build())
		require.True(t, ok)
		_, ok = m.Update(builders.NewSnapshotBuilder("banner").WithStatic(2).Build())
		require.True(t, ok)

		rotation := m.Rotation()
		assert.Equal(t, []string{"banner-0", "banner-1", "notices-0"}, slideIDs(rotation))
	})

	t.Run("new snapshot replaces the previous one wholesale", func(t *testing.T) {
		m := NewSlideMerger([]string{"banner", "birthdays"})
		m.Update(builders.NewSnapshotBuilder("banner").WithStatic(3).Build())
		m.Update(builders.NewSnapshotBuilder("birthdays").WithStatic(2).Build())

		rotation, ok := m.Update(builders.NewSnapshotBuilder("birthdays").Build())

		require.True(t, ok)
		assert.Equal(t, 3, rotation.Len())
	})

	t.Run("rejects unknown providers", func(t *testing.T) {
		m := NewSlideMerger([]string{"banner"})
		m.Update(builders.NewSnapshotBuilder("banner").WithStatic(1).Build())

		rotation, ok := m.Update(builders.NewSnapshotBuilder("rogue").WithStatic(4).Build())

		assert.False(t, ok)
		assert.Equal(t, 1, rotation.Len())
	})

	t.Run("snapshots skip providers that have not reported", func(t *testing.T) {
		m := NewSlideMerger([]string{"banner", "birthdays", "notices"})
		m.Update(builders.NewSnapshotBuilder("notices").WithStatic(1).Build())

		snaps := m.Snapshots()
		require.Len(t, snaps, 1)
		assert.Equal(t, "notices", snaps[0].ProviderID)
		assert.Equal(t, []string{"banner", "birthdays", "notices"}, m.Order())
	})
}
