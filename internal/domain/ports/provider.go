package ports

import (
	"context"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// SnapshotFunc receives each snapshot a provider emits
type SnapshotFunc func(snapshot entities.ProviderSnapshot)

// ContentProvider is a source of zero or more slides, refreshed independently.
//
// Implementations must:
//   - deliver an initial snapshot (possibly empty) promptly after Subscribe
//   - deliver a new snapshot whenever the underlying data changes
//   - stop calling fn once the returned unsubscribe function has been called
//   - report fetch failures as an empty snapshot with Err set, never by panicking
type ContentProvider interface {
	// ID returns the identifier used in the rotation's provider order
	ID() string

	// Subscribe registers fn and returns a function that cancels the subscription
	Subscribe(fn SnapshotFunc) (unsubscribe func())
}

// SlideFetcher produces the current slides for a polling provider
type SlideFetcher interface {
	FetchSlides(ctx context.Context) ([]entities.Slide, error)
}

// SlideFetcherFunc adapts a function to SlideFetcher
type SlideFetcherFunc func(ctx context.Context) ([]entities.Slide, error)

// FetchSlides calls f(ctx)
func (f SlideFetcherFunc) FetchSlides(ctx context.Context) ([]entities.Slide, error) {
	return f(ctx)
}
