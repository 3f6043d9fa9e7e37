package builders

import (
	"fmt"
	"time"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// SlideBuilder helps build Slide entities for testing
type SlideBuilder struct {
	slide entities.Slide
}

// NewSlideBuilder creates a static slide builder with sensible defaults
func NewSlideBuilder() *SlideBuilder {
	return &SlideBuilder{
		slide: entities.Slide{
			Kind:    entities.SlideKindStatic,
			ID:      "slide-1",
			Title:   "Test Slide",
			Payload: "# Test Slide\n\nWelcome to the school.",
		},
	}
}

// WithID sets the slide id
func (b *SlideBuilder) WithID(id string) *SlideBuilder {
	b.slide.ID = id
	return b
}

// WithTitle sets the slide title
func (b *SlideBuilder) WithTitle(title string) *SlideBuilder {
	b.slide.Title = title
	return b
}

// WithPayload sets the slide payload
func (b *SlideBuilder) WithPayload(payload string) *SlideBuilder {
	b.slide.Payload = payload
	return b
}

// Dynamic marks the slide dynamic, valid until the given time
func (b *SlideBuilder) Dynamic(validUntil time.Time) *SlideBuilder {
	b.slide.Kind = entities.SlideKindDynamic
	b.slide.ValidUntil = &validUntil
	return b
}

// Build returns the built slide
func (b *SlideBuilder) Build() entities.Slide {
	return b.slide
}

// StaticSlides builds n static slides with ids prefix-0..prefix-(n-1)
func StaticSlides(prefix string, n int) []entities.Slide {
	slides := make([]entities.Slide, 0, n)
	for i := 0; i < n; i++ {
		slides = append(slides, NewSlideBuilder().
			WithID(fmt.Sprintf("%s-%d", prefix, i)).
			WithTitle(fmt.Sprintf("%s %d", prefix, i)).
			Build())
	}
	return slides
}

// DynamicSlides builds n dynamic slides valid until validUntil
func DynamicSlides(prefix string, n int, validUntil time.Time) []entities.Slide {
	slides := make([]entities.Slide, 0, n)
	for i := 0; i < n; i++ {
		slides = append(slides, NewSlideBuilder().
			WithID(fmt.Sprintf("%s-%d", prefix, i)).
			WithTitle(fmt.Sprintf("%s %d", prefix, i)).
			Dynamic(validUntil).
			Build())
	}
	return slides
}

// SnapshotBuilder helps build ProviderSnapshot values for testing
type SnapshotBuilder struct {
	snapshot entities.ProviderSnapshot
}

// NewSnapshotBuilder creates a snapshot builder for providerID
func NewSnapshotBuilder(providerID string) *SnapshotBuilder {
	return &SnapshotBuilder{
		snapshot: entities.ProviderSnapshot{
			ProviderID: providerID,
			FetchedAt:  time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		},
	}
}

// WithSlides sets the snapshot slides
func (b *SnapshotBuilder) WithSlides(slides ...entities.Slide) *SnapshotBuilder {
	b.snapshot.Slides = append(b.snapshot.Slides, slides...)
	return b
}

// WithStatic appends n static slides
func (b *SnapshotBuilder) WithStatic(n int) *SnapshotBuilder {
	b.snapshot.Slides = append(b.snapshot.Slides, StaticSlides(b.snapshot.ProviderID, n)...)
	return b
}

// WithError marks the snapshot as failed
func (b *SnapshotBuilder) WithError(err error) *SnapshotBuilder {
	b.snapshot.Err = err
	b.snapshot.Slides = nil
	return b
}

// At sets the fetch time
func (b *SnapshotBuilder) At(t time.Time) *SnapshotBuilder {
	b.snapshot.FetchedAt = t
	return b
}

// Build returns the built snapshot
func (b *SnapshotBuilder) Build() entities.ProviderSnapshot {
	return b.snapshot
}
