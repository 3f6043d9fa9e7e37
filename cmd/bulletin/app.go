package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"gorm.io/gorm"

	httpadapter "github.com/fredcamaral/bulletin/internal/adapters/primary/http"
	"github.com/fredcamaral/bulletin/internal/adapters/secondary/monitoring"
	"github.com/fredcamaral/bulletin/internal/adapters/secondary/provider"
	"github.com/fredcamaral/bulletin/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/bulletin/internal/adapters/secondary/store"
	"github.com/fredcamaral/bulletin/internal/adapters/secondary/watcher"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
	"github.com/fredcamaral/bulletin/internal/domain/services"
)

// application holds the wired components of a running site
type application struct {
	cfg     *entities.Config
	logger  *slog.Logger
	clock   ports.TimeProvider
	db      *gorm.DB
	records *store.GormStore
	service *services.RotationService
	server  *httpadapter.Server
	banner  *provider.StaticProvider

	// launcher, when set, opens the display page once the server is up
	launcher ports.DisplayLauncher

	stopReloadNotices func()
}

// newApplication connects the record store and wires providers, scheduler and server
func newApplication(ctx context.Context, cfg *entities.Config, clock ports.TimeProvider, logger *slog.Logger) (*application, error) {
	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}

	db, err := store.Connect(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	records := store.NewGormStore(db, logger)
	if err := records.Migrate(ctx); err != nil {
		_ = store.Close(db)
		return nil, err
	}

	app := &application{
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
		db:      db,
		records: records,
	}

	metrics := monitoring.NewMetrics()
	scheduler := services.NewRotationScheduler(cfg.Rotation.GetTickInterval(), clock, metrics, logger)

	contentProviders := app.buildProviders()
	service, err := services.NewRotationService(cfg.Rotation.ProviderOrder, contentProviders, scheduler, clock, metrics, logger)
	if err != nil {
		_ = store.Close(db)
		return nil, fmt.Errorf("creating rotation service: %w", err)
	}
	app.service = service

	display, err := renderer.NewDisplayRenderer()
	if err != nil {
		_ = store.Close(db)
		return nil, err
	}

	slides := renderer.NewCachedRenderer(renderer.NewMarkdownRenderer(), renderer.DefaultCacheBytes)
	metrics.RegisterRenderCache(slides.Stats)

	app.server = httpadapter.NewServer(&cfg.Server, httpadapter.Dependencies{
		Presenter: scheduler,
		Providers: service,
		Store:     records,
		Slides:    slides,
		Display:   display,
		Metrics:   metrics,
		Health:    records,
		Clock:     clock,
		Logger:    logger,
	})
	service.OnProviderError(app.server.BroadcastProviderError)

	app.stopReloadNotices = func() {}
	if app.banner != nil {
		app.stopReloadNotices = app.banner.Subscribe(bannerReloadNotifier(app.server.BroadcastBannerReload))
	}

	return app, nil
}

// buildProviders creates the enabled content providers
func (a *application) buildProviders() []ports.ContentProvider {
	cfg := a.cfg.Providers
	var result []ports.ContentProvider

	if cfg.Banner.Enabled {
		opts := provider.StaticOptions{Clock: a.clock, Logger: a.logger}
		if cfg.Banner.Watch {
			opts.NewWatcher = func() ports.FileWatcher {
				return watcher.NewPollingWatcher(cfg.Banner.GetInterval(), cfg.Banner.GetDebounce(), a.logger)
			}
		}
		a.banner = provider.NewStaticProvider(entities.ProviderBanner, cfg.Banner.File, opts)
		result = append(result, a.banner)
	}

	if cfg.Birthdays.Enabled {
		fetcher := provider.NewBirthdayFetcher(a.records, a.clock, cfg.Birthdays.GetLocation(), cfg.Birthdays.GetLimit())
		result = append(result, provider.NewPollingProvider(entities.ProviderBirthdays, fetcher, pollingOptions(cfg.Birthdays, a.clock, a.logger)))
	}

	if cfg.Notices.Enabled {
		fetcher := provider.NewPinnedNoticeFetcher(a.records, a.clock, cfg.Notices.GetLimit())
		result = append(result, provider.NewPollingProvider(entities.ProviderNotices, fetcher, pollingOptions(cfg.Notices, a.clock, a.logger)))
	}

	return result
}

func pollingOptions(cfg entities.PollingProviderConfig, clock ports.TimeProvider, logger *slog.Logger) provider.PollingOptions {
	return provider.PollingOptions{
		Interval: cfg.GetRefreshInterval(),
		Timeout:  cfg.GetFetchTimeout(),
		Clock:    clock,
		Logger:   logger,
	}
}

// Run serves until ctx is done, then shuts everything down
func (a *application) Run(ctx context.Context) error {
	if err := a.server.Start(ctx, a.cfg.Server.Port, a.cfg.Server.Host); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	if err := a.service.Start(); err != nil {
		_ = a.server.Stop(context.Background())
		return fmt.Errorf("starting rotation: %w", err)
	}

	a.logger.Info("Bulletin ready",
		slog.String("addr", a.server.Addr()),
		slog.Any("provider_order", a.cfg.Rotation.ProviderOrder),
		slog.Duration("tick_interval", a.cfg.Rotation.GetTickInterval()),
	)

	if a.launcher != nil {
		openDisplay(a.launcher, displayURL(a.server.Addr()), a.logger)
	}

	<-ctx.Done()
	a.logger.Info("Shutting down")

	return a.shutdown()
}

// openDisplay starts the detected browser on url. A failure leaves the server running
// for displays opened by hand.
func openDisplay(launcher ports.DisplayLauncher, url string, logger *slog.Logger) {
	browser, err := launcher.Detect()
	if err != nil {
		logger.Warn("No browser for the display", slog.String("url", url), slog.Any("error", err))
		return
	}

	if err := launcher.Launch(url); err != nil {
		logger.Warn("Could not open display",
			slog.String("browser", browser),
			slog.String("url", url),
			slog.Any("error", err),
		)
		return
	}

	logger.Info("Display opened", slog.String("browser", browser), slog.String("url", url))
}

// shutdown stops the server before the rotation so no client sees a disposed scheduler
func (a *application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.GetShutdownTimeout()+time.Second)
	defer cancel()

	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	a.stopReloadNotices()
	a.service.Close()

	return errors.Join(errs...)
}

// Close releases the providers and the database connection. Safe after Run.
func (a *application) Close() error {
	a.stopReloadNotices()
	a.service.Close()

	if err := store.Close(a.db); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// bannerReloadNotifier tells clients about banner file reloads. The synchronous
// delivery on subscribe and failed reloads are skipped.
func bannerReloadNotifier(notify func(slides int)) ports.SnapshotFunc {
	first := true
	return func(snapshot entities.ProviderSnapshot) {
		if first {
			first = false
			return
		}
		if snapshot.Err != nil {
			return
		}
		notify(snapshot.Len())
	}
}

// displayURL returns the local URL of the display page for a listener address
func displayURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
