package provider

import (
	"context"
	"fmt"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// PinnedNoticeFetcher turns pinned, visible notices into dynamic slides. A notice's
// expiry becomes the slide's validity window.
type PinnedNoticeFetcher struct {
	store ports.RecordStore
	clock ports.TimeProvider
	limit int
}

// NewPinnedNoticeFetcher creates a fetcher reading from store
func NewPinnedNoticeFetcher(store ports.RecordStore, clock ports.TimeProvider, limit int) *PinnedNoticeFetcher {
	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}
	return &PinnedNoticeFetcher{store: store, clock: clock, limit: limit}
}

// FetchSlides returns pinned notices newest first
func (f *PinnedNoticeFetcher) FetchSlides(ctx context.Context) ([]entities.Slide, error) {
	notices, err := f.store.PinnedNotices(ctx, f.clock.Now(), f.limit)
	if err != nil {
		return nil, fmt.Errorf("loading pinned notices: %w", err)
	}

	slides := make([]entities.Slide, 0, len(notices))
	for _, notice := range notices {
		payload := notice.Body
		if payload == "" {
			payload = "## " + notice.Title
		}

		slides = append(slides, entities.Slide{
			Kind:       entities.SlideKindDynamic,
			ID:         fmt.Sprintf("notice-%d", notice.ID),
			Title:      notice.Title,
			Payload:    payload,
			ValidUntil: notice.ExpiresAt,
		})
	}

	return slides, nil
}

var _ ports.SlideFetcher = (*PinnedNoticeFetcher)(nil)
