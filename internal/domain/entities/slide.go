package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SlideKind distinguishes fixed promotional slides from fetched, time-sensitive ones
type SlideKind string

const (
	// SlideKindStatic is a slide from a fixed set (e.g. the promotional banner)
	SlideKindStatic SlideKind = "static"

	// SlideKindDynamic is a slide produced from fetched records (e.g. today's birthdays)
	SlideKindDynamic SlideKind = "dynamic"
)

// Slide represents one unit of rotating content
type Slide struct {
	// Kind tags the variant
	Kind SlideKind `json:"kind" yaml:"kind"`

	// ID is unique within a provider's batch and stable across re-fetches
	ID string `json:"id" yaml:"id"`

	// Title is a short heading shown with the slide
	Title string `json:"title,omitempty" yaml:"title"`

	// Payload is the markdown body of the slide
	Payload string `json:"payload" yaml:"payload"`

	// ImageURL is an optional background image
	ImageURL string `json:"imageUrl,omitempty" yaml:"image"`

	// LinkURL is an optional call-to-action target
	LinkURL string `json:"linkUrl,omitempty" yaml:"link"`

	// ValidUntil bounds the lifetime of dynamic slides; nil means no expiry
	ValidUntil *time.Time `json:"validUntil,omitempty" yaml:"-"`
}

// NewStaticSlide creates a static slide
func NewStaticSlide(id, title, payload string) Slide {
	return Slide{
		Kind:    SlideKindStatic,
		ID:      id,
		Title:   title,
		Payload: payload,
	}
}

// NewDynamicSlide creates a dynamic slide that expires at validUntil
func NewDynamicSlide(id, title, payload string, validUntil time.Time) Slide {
	return Slide{
		Kind:       SlideKindDynamic,
		ID:         id,
		Title:      title,
		Payload:    payload,
		ValidUntil: &validUntil,
	}
}

// Validate ensures the slide is well formed
func (s *Slide) Validate() error {
	switch s.Kind {
	case SlideKindStatic:
		if s.ValidUntil != nil {
			return errors.New("static slide cannot carry an expiry")
		}
	case SlideKindDynamic:
	default:
		return fmt.Errorf("unknown slide kind: %q", s.Kind)
	}

	if strings.TrimSpace(s.ID) == "" {
		return errors.New("slide id cannot be empty")
	}

	if strings.TrimSpace(s.Payload) == "" && s.ImageURL == "" {
		return errors.New("slide needs a payload or an image")
	}

	return nil
}

// IsDynamic returns true for fetched slides
func (s *Slide) IsDynamic() bool {
	return s.Kind == SlideKindDynamic
}

// ExpiredAt reports whether the slide is past its validity window at t. Static slides
// never expire.
func (s *Slide) ExpiredAt(t time.Time) bool {
	return s.IsDynamic() && s.ValidUntil != nil && !t.Before(*s.ValidUntil)
}
