package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/renderer"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// relayClientID is the scheduler subscription feeding WebSocket clients
const relayClientID = "http-relay"

// SnapshotSource exposes the latest provider snapshots
type SnapshotSource interface {
	Snapshots() []entities.ProviderSnapshot
}

// DisplayRenderer renders the kiosk page
type DisplayRenderer interface {
	RenderDisplay(ctx context.Context, page renderer.DisplayPage) ([]byte, error)
	RenderSlide(ctx context.Context, slide renderer.DisplaySlide) ([]byte, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ServerMetrics is what the server reports to the metrics backend
type ServerMetrics interface {
	RequestObserver
	Handler() http.Handler
	WebSocketConnected()
	WebSocketDisconnected()
}

// Dependencies are the collaborators behind the HTTP API. Metrics and Health are optional.
type Dependencies struct {
	Presenter ports.RotationPresenter
	Providers SnapshotSource
	Store     ports.RecordStore
	Slides    ports.SlideRenderer
	Display   DisplayRenderer
	Metrics   ServerMetrics
	Health    HealthChecker
	Clock     ports.TimeProvider
	Logger    *slog.Logger
}

// Server implements the HTTPServer interface
type Server struct {
	server    *http.Server
	connMgr   *ConnectionManager
	presenter ports.RotationPresenter
	providers SnapshotSource
	store     ports.RecordStore
	slides    ports.SlideRenderer
	display   DisplayRenderer
	metrics   ServerMetrics
	health    HealthChecker
	clock     ports.TimeProvider
	limiter   *rateLimiter
	config    *entities.ServerConfig
	logger    *slog.Logger

	mu      sync.RWMutex
	running bool
	addr    string
	cancel  context.CancelFunc
	relay   chan struct{}
}

// NewServer creates a new HTTP server.
// config must not be nil - use config.GetDefaultConfig().Server if needed
func NewServer(config *entities.ServerConfig, deps Dependencies) *Server {
	if config == nil {
		panic("server config cannot be nil - provide a valid ServerConfig")
	}
	if deps.Clock == nil {
		deps.Clock = ports.NewRealTimeProvider()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Server{
		connMgr:   NewConnectionManager(),
		presenter: deps.Presenter,
		providers: deps.Providers,
		store:     deps.Store,
		slides:    deps.Slides,
		display:   deps.Display,
		metrics:   deps.Metrics,
		health:    deps.Health,
		clock:     deps.Clock,
		limiter:   newRateLimiter(300, time.Minute),
		config:    config,
		logger:    deps.Logger.With("service", "http"),
	}
}

// Start starts the HTTP server and begins relaying rotation events to WebSocket clients
func (s *Server) Start(ctx context.Context, port int, host string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.connMgr.Run(runCtx)
	go s.limiter.run(runCtx)

	s.relay = make(chan struct{})
	go s.relayRotationEvents(s.presenter.Subscribe(relayClientID), s.relay)

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.GetReadTimeout(),
		WriteTimeout: s.config.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}
	s.running = true
	s.addr = listener.Addr().String()
	srv := s.server
	s.mu.Unlock()

	go func() {
		s.logger.Info("HTTP server starting", slog.String("addr", s.Addr()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.New("server not running")
	}

	s.presenter.Unsubscribe(relayClientID)
	<-s.relay

	s.connMgr.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.GetShutdownTimeout())
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.cancel()
	s.running = false

	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// NotifyClients sends an update event to all connected clients
func (s *Server) NotifyClients(event ports.UpdateEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return errors.New("server not running")
	}

	s.connMgr.Broadcast(event)
	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the address the server listens on, or "" when stopped
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return ""
	}
	return s.addr
}

// Handler returns the full middleware chain around the router
func (s *Server) Handler() http.Handler {
	router := s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.GetCORSOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	// Apply middleware in order: cors -> security -> rate limiting -> logging -> recovery
	handler := c.Handler(router)
	handler = securityHeadersMiddleware(handler)
	handler = s.limiter.middleware(handler)
	handler = createLoggingMiddleware(handler, s.logger, s.metrics, routeTemplate(router))
	handler = createRecoveryMiddleware(handler, s.logger)

	return handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handleDisplay).Methods(http.MethodGet)
	router.HandleFunc("/display/slide", s.handleDisplaySlide).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rotation", s.handleRotation).Methods(http.MethodGet)
	api.HandleFunc("/rotation/current", s.handleCurrentSlide).Methods(http.MethodGet)
	api.HandleFunc("/rotation/next", s.handleNext).Methods(http.MethodPost)
	api.HandleFunc("/rotation/prev", s.handlePrev).Methods(http.MethodPost)
	api.HandleFunc("/rotation/jump", s.handleJump).Methods(http.MethodPost)
	api.HandleFunc("/notices", s.handleNotices).Methods(http.MethodGet)
	api.HandleFunc("/notices/{id:[0-9]+}", s.handleNotice).Methods(http.MethodGet)
	api.HandleFunc("/announcements", s.handleAnnouncements).Methods(http.MethodGet)
	api.HandleFunc("/providers", s.handleProviders).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, fmt.Errorf("no route for %s", r.URL.Path), http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, fmt.Errorf("%s not allowed on %s", r.Method, r.URL.Path), http.StatusMethodNotAllowed)
	})

	return router
}

// routeTemplate labels requests by their mux path template to keep metric cardinality low
func routeTemplate(router *mux.Router) func(*http.Request) string {
	return func(r *http.Request) string {
		var match mux.RouteMatch
		if router.Match(r, &match) && match.Route != nil {
			if tmpl, err := match.Route.GetPathTemplate(); err == nil {
				return tmpl
			}
		}
		return "unmatched"
	}
}

// relayRotationEvents forwards scheduler events until the subscription closes
func (s *Server) relayRotationEvents(events <-chan entities.RotationEvent, done chan struct{}) {
	defer close(done)

	for event := range events {
		s.connMgr.Broadcast(ports.UpdateEvent{
			Type:      ports.EventTypeState,
			Timestamp: event.Timestamp,
			Data:      event,
		})
	}
}

var _ ports.HTTPServer = (*Server)(nil)
