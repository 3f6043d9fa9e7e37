package renderer

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// MarkdownRenderer converts slide payloads to sanitized HTML
type MarkdownRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkdownRenderer creates a renderer with GitHub flavored markdown enabled
func NewMarkdownRenderer() *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			// Raw HTML is passed through and cleaned by the sanitizer
			html.WithUnsafe(),
		),
	)

	return &MarkdownRenderer{
		md:     md,
		policy: newSlidePolicy(),
	}
}

// RenderMarkdown converts markdown to sanitized HTML
func (r *MarkdownRenderer) RenderMarkdown(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// RenderSlide renders the slide payload
func (r *MarkdownRenderer) RenderSlide(slide entities.Slide) (ports.RenderedSlide, error) {
	rendered, err := r.RenderMarkdown(slide.Payload)
	if err != nil {
		return ports.RenderedSlide{}, fmt.Errorf("slide %s: %w", slide.ID, err)
	}

	return ports.RenderedSlide{
		Slide: slide,
		HTML:  rendered,
	}, nil
}

// newSlidePolicy allows the formatting markdown produces and strips everything else
func newSlidePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("p", "br", "hr")
	p.AllowElements("strong", "b", "em", "i", "u", "s", "del", "mark")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("blockquote", "pre", "code")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("class").OnElements("div", "span", "code")
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.RequireNoFollowOnLinks(true)

	return p
}

var _ ports.SlideRenderer = (*MarkdownRenderer)(nil)
