package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// bannerNamespace derives stable ids for banner slides declared without one
var bannerNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bulletin:banner"))

// bannerFile is the on-disk banner definition
type bannerFile struct {
	Slides []entities.Slide `yaml:"slides"`
}

// StaticOptions configures a StaticProvider
type StaticOptions struct {
	// NewWatcher creates the watcher used while the provider has subscribers; nil disables reloads
	NewWatcher func() ports.FileWatcher
	Clock      ports.TimeProvider
	Logger     *slog.Logger
}

// StaticProvider serves the fixed promotional slides declared in a YAML file and
// republishes them whenever the file changes
type StaticProvider struct {
	id     string
	path   string
	opts   StaticOptions
	logger *slog.Logger
	subs   *subscribers

	mu          sync.Mutex
	last        *entities.ProviderSnapshot
	watcher     ports.FileWatcher
	stopWatcher context.CancelFunc

	// loadMu serializes file reads so reloads publish in order
	loadMu sync.Mutex
}

// NewStaticProvider creates a provider named id serving the slides in path
func NewStaticProvider(id, path string, opts StaticOptions) *StaticProvider {
	if opts.Clock == nil {
		opts.Clock = ports.NewRealTimeProvider()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &StaticProvider{
		id:     id,
		path:   path,
		opts:   opts,
		logger: opts.Logger.With("service", "provider", "provider", id),
		subs:   newSubscribers(),
	}
}

// ID returns the provider identifier
func (p *StaticProvider) ID() string {
	return p.id
}

// Subscribe registers fn and delivers the current slides synchronously
func (p *StaticProvider) Subscribe(fn ports.SnapshotFunc) func() {
	id, sub, first := p.subs.add(fn)
	if first {
		p.startWatching()
	}

	// loadMu orders this delivery against Reload's broadcast, so a newer snapshot
	// broadcast to sub is never followed by an older cached one
	p.loadMu.Lock()
	sub.deliver(p.currentLocked())
	p.loadMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			if p.subs.remove(id) == 0 {
				p.stopWatching()
			}
		})
	}
}

// Reload re-reads the banner file and publishes the result. A file that fails to load
// after a good one keeps the previous slides on display and returns the error.
func (p *StaticProvider) Reload() (entities.ProviderSnapshot, error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	snapshot := p.load()

	p.mu.Lock()
	previous := p.last
	if snapshot.Err != nil && previous != nil && previous.Err == nil {
		p.mu.Unlock()
		p.logger.Warn("Banner reload failed, keeping previous slides",
			slog.String("path", p.path),
			slog.String("error", snapshot.Err.Error()),
		)
		return *previous, snapshot.Err
	}
	p.last = &snapshot
	p.mu.Unlock()

	p.logger.Info("Banner reloaded", slog.Int("slides", snapshot.Len()))
	p.subs.broadcast(snapshot)
	return snapshot, snapshot.Err
}

// current returns the cached snapshot, loading the file on first use
func (p *StaticProvider) current() entities.ProviderSnapshot {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	return p.currentLocked()
}

// currentLocked is current for callers holding loadMu
func (p *StaticProvider) currentLocked() entities.ProviderSnapshot {
	p.mu.Lock()
	cached := p.last
	p.mu.Unlock()
	if cached != nil {
		return *cached
	}

	snapshot := p.load()
	p.mu.Lock()
	p.last = &snapshot
	p.mu.Unlock()
	return snapshot
}

func (p *StaticProvider) load() entities.ProviderSnapshot {
	now := p.opts.Clock.Now()

	slides, err := LoadBannerFile(p.path)
	if err != nil {
		p.logger.Warn("Failed to load banner", slog.String("path", p.path), slog.String("error", err.Error()))
		return entities.FailedSnapshot(p.id, err, now)
	}

	return entities.NewSnapshot(p.id, slides, now)
}

func (p *StaticProvider) startWatching() {
	if p.opts.NewWatcher == nil {
		return
	}

	watcher := p.opts.NewWatcher()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := watcher.Watch(ctx, p.path)
	if err != nil {
		cancel()
		_ = watcher.Stop()
		p.logger.Warn("Banner file not watched", slog.String("path", p.path), slog.String("error", err.Error()))
		return
	}

	p.mu.Lock()
	p.watcher = watcher
	p.stopWatcher = cancel
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				p.logger.Debug("Banner file changed", slog.String("change", event.Type.String()))
				_, _ = p.Reload()
			}
		}
	}()
}

func (p *StaticProvider) stopWatching() {
	p.mu.Lock()
	watcher, cancel := p.watcher, p.stopWatcher
	p.watcher, p.stopWatcher = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			p.logger.Warn("Failed to stop banner watcher", slog.String("error", err.Error()))
		}
	}
}

// LoadBannerFile reads and validates the banner slides in path. Slides without an id get
// one derived from their content, so ids stay stable across reloads.
func LoadBannerFile(path string) ([]entities.Slide, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("reading banner file: %w", err)
	}

	var file bannerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing banner file: %w", err)
	}

	seen := make(map[string]bool, len(file.Slides))
	slides := make([]entities.Slide, 0, len(file.Slides))
	for i, slide := range file.Slides {
		slide.Kind = entities.SlideKindStatic
		slide.ValidUntil = nil
		if slide.ID == "" {
			slide.ID = uuid.NewSHA1(bannerNamespace, []byte(slide.Title+"\x00"+slide.Payload+"\x00"+slide.ImageURL)).String()
		}

		if err := slide.Validate(); err != nil {
			return nil, fmt.Errorf("banner slide %d: %w", i+1, err)
		}
		if seen[slide.ID] {
			return nil, fmt.Errorf("banner slide %d: duplicate id %q", i+1, slide.ID)
		}
		seen[slide.ID] = true

		slides = append(slides, slide)
	}

	return slides, nil
}

var _ ports.ContentProvider = (*StaticProvider)(nil)
