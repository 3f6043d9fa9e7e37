package renderer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// DisplayPage is the data behind the kiosk page
type DisplayPage struct {
	Title         string
	Slides        []DisplaySlide
	ActiveIndex   int
	TickInterval  time.Duration
	Announcements []entities.Announcement
	GeneratedAt   time.Time
}

// DisplaySlide is one rendered slide on the kiosk page
type DisplaySlide struct {
	ports.RenderedSlide
	ProviderID string
}

// DisplayRenderer renders the kiosk page with html/template
type DisplayRenderer struct {
	templates *template.Template
}

// NewDisplayRenderer parses the display templates
func NewDisplayRenderer() (*DisplayRenderer, error) {
	tmpl := template.New("display").Funcs(template.FuncMap{
		// Slide HTML has already been sanitized by the markdown renderer
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s) // #nosec G203 - input is sanitized upstream
		},
		"millis": func(d time.Duration) int64 {
			return d.Milliseconds()
		},
	})

	if _, err := tmpl.Parse(displayTemplate); err != nil {
		return nil, fmt.Errorf("parsing display template: %w", err)
	}

	if _, err := tmpl.New("slide").Parse(slideTemplate); err != nil {
		return nil, fmt.Errorf("parsing slide template: %w", err)
	}

	return &DisplayRenderer{templates: tmpl}, nil
}

// RenderDisplay renders the full kiosk page
func (r *DisplayRenderer) RenderDisplay(ctx context.Context, page DisplayPage) ([]byte, error) {
	if page.Title == "" {
		page.Title = "Bulletin"
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, "display", page); err != nil {
		return nil, fmt.Errorf("executing display template: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderSlide renders a single slide fragment
func (r *DisplayRenderer) RenderSlide(ctx context.Context, slide DisplaySlide) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, "slide", slide); err != nil {
		return nil, fmt.Errorf("executing slide template: %w", err)
	}
	return buf.Bytes(), nil
}

const slideTemplate = `<section class="slide slide-{{.Slide.Kind}}" data-id="{{.Slide.ID}}" data-provider="{{.ProviderID}}">
    {{if .Slide.ImageURL}}<img class="slide-image" src="{{.Slide.ImageURL}}" alt="{{.Slide.Title}}">{{end}}
    <div class="slide-body">{{.HTML | safeHTML}}</div>
    {{if .Slide.LinkURL}}<a class="slide-link" href="{{.Slide.LinkURL}}" rel="nofollow">{{if .Slide.Title}}{{.Slide.Title}}{{else}}More{{end}}</a>{{end}}
</section>`

const displayTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
        .rotation { position: relative; min-height: 80vh; }
        .slide { display: none; padding: 2em; }
        .slide.active { display: block; }
        .slide-image { max-width: 100%; }
        .ticker { background: #2c3e50; color: #fff; padding: 0.5em 1em; white-space: nowrap; overflow: hidden; }
        .ticker span + span::before { content: " \2022 "; }
        .empty { padding: 2em; color: #666; }
    </style>
</head>
<body>
    <main class="rotation" data-active="{{.ActiveIndex}}" data-interval="{{millis .TickInterval}}">
        {{range $index, $slide := .Slides}}
        <div class="slide-wrapper" data-index="{{$index}}">{{template "slide" $slide}}</div>
        {{else}}
        <p class="empty">Nothing to show right now.</p>
        {{end}}
    </main>

    {{if .Announcements}}
    <footer class="ticker">{{range .Announcements}}<span>{{.Text}}</span>{{end}}</footer>
    {{end}}

    <script>
    (function () {
        var slides = document.querySelectorAll('.slide-wrapper .slide');
        var count = slides.length;

        function show(index) {
            for (var i = 0; i < slides.length; i++) {
                slides[i].classList.toggle('active', i === index);
            }
        }
        show({{.ActiveIndex}});

        var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        var ws = new WebSocket(scheme + location.host + '/ws');
        ws.onmessage = function (msg) {
            var event = JSON.parse(msg.data);
            if (event.type === 'banner_reload' || (event.type === 'state' && event.data.state.rotationLength !== count)) {
                location.reload();
                return;
            }
            if (event.type === 'state') {
                show(event.data.state.activeIndex);
            }
        };
        ws.onclose = function () { setTimeout(function () { location.reload(); }, 5000); };
    })();
    </script>
</body>
</html>`
