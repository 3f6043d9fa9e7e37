package ports

import "github.com/fredcamaral/bulletin/internal/domain/entities"

// RenderedSlide is a slide with its payload converted to safe HTML
type RenderedSlide struct {
	Slide entities.Slide
	HTML  string
}

// SlideRenderer converts slide payloads for display
type SlideRenderer interface {
	RenderSlide(slide entities.Slide) (RenderedSlide, error)
	RenderMarkdown(markdown string) (string, error)
}
