package entities

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Embedded zone database so timezone settings validate on hosts without one
	_ "time/tzdata"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Rotation  RotationConfig  `toml:"rotation"`
	Providers ProvidersConfig `toml:"providers"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Rotation.Validate(); err != nil {
		return fmt.Errorf("rotation config: %w", err)
	}

	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers config: %w", err)
	}

	for _, id := range c.Providers.Enabled() {
		if !c.Rotation.HasProvider(id) {
			return fmt.Errorf("rotation config: provider %q is enabled but missing from provider_order", id)
		}
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ReadTimeout     int      `toml:"read_timeout"`
	WriteTimeout    int      `toml:"write_timeout"`
	ShutdownTimeout int      `toml:"shutdown_timeout"`
	Environment     string   `toml:"environment"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// Validate validates server configuration
func (s ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return errors.New("port must be between 0 and 65535")
	}

	if s.Host != "" {
		if ip := net.ParseIP(s.Host); ip == nil {
			if _, err := net.LookupHost(s.Host); err != nil {
				return fmt.Errorf("invalid host: %w", err)
			}
		}
	}

	if s.ReadTimeout < 0 {
		return errors.New("read timeout must be non-negative")
	}

	if s.WriteTimeout < 0 {
		return errors.New("write timeout must be non-negative")
	}

	if s.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout must be non-negative")
	}

	for _, origin := range s.CORSOrigins {
		if origin == "" {
			return errors.New("CORS origin cannot be empty")
		}
		if origin == "*" {
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid CORS origin format: %s (must start with http:// or https://)", origin)
		}
	}

	return nil
}

// GetReadTimeout returns the read timeout as a duration
func (s ServerConfig) GetReadTimeout() time.Duration {
	if s.ReadTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a duration
func (s ServerConfig) GetWriteTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetShutdownTimeout returns the shutdown timeout as a duration
func (s ServerConfig) GetShutdownTimeout() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetCORSOrigins returns CORS origins with defaults if empty
func (s ServerConfig) GetCORSOrigins() []string {
	if len(s.CORSOrigins) == 0 {
		return []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}
	}
	return s.CORSOrigins
}

// IsDevelopment returns true if the server is running in development mode
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development" || s.Environment == ""
}

// Provider identifiers known to the application
const (
	ProviderBanner    = "banner"
	ProviderBirthdays = "birthdays"
	ProviderNotices   = "notices"
)

// MinTickInterval is the fastest cadence the rotation accepts
const MinTickInterval = 100 * time.Millisecond

// RotationConfig contains the scheduler options
type RotationConfig struct {
	TickIntervalMs int      `toml:"tick_interval_ms"`
	ProviderOrder  []string `toml:"provider_order"`
}

// Validate validates rotation configuration
func (r RotationConfig) Validate() error {
	if r.TickIntervalMs != 0 && time.Duration(r.TickIntervalMs)*time.Millisecond < MinTickInterval {
		return fmt.Errorf("tick interval must be at least %v", MinTickInterval)
	}

	if len(r.ProviderOrder) == 0 {
		return errors.New("provider order cannot be empty")
	}

	seen := make(map[string]bool, len(r.ProviderOrder))
	for _, id := range r.ProviderOrder {
		if strings.TrimSpace(id) == "" {
			return errors.New("provider order contains an empty identifier")
		}
		if seen[id] {
			return fmt.Errorf("provider %q listed more than once", id)
		}
		seen[id] = true
	}

	return nil
}

// GetTickInterval returns the interval between automatic advances
func (r RotationConfig) GetTickInterval() time.Duration {
	if r.TickIntervalMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.TickIntervalMs) * time.Millisecond
}

// HasProvider reports whether id appears in the provider order
func (r RotationConfig) HasProvider(id string) bool {
	for _, p := range r.ProviderOrder {
		if p == id {
			return true
		}
	}
	return false
}

// ProvidersConfig contains content provider configuration
type ProvidersConfig struct {
	Banner    BannerProviderConfig  `toml:"banner"`
	Birthdays PollingProviderConfig `toml:"birthdays"`
	Notices   PollingProviderConfig `toml:"notices"`
}

// Validate validates provider configuration
func (p ProvidersConfig) Validate() error {
	if err := p.Banner.Validate(); err != nil {
		return fmt.Errorf("banner: %w", err)
	}
	if err := p.Birthdays.Validate(); err != nil {
		return fmt.Errorf("birthdays: %w", err)
	}
	if err := p.Notices.Validate(); err != nil {
		return fmt.Errorf("notices: %w", err)
	}
	return nil
}

// Enabled returns the identifiers of enabled providers
func (p ProvidersConfig) Enabled() []string {
	var ids []string
	if p.Banner.Enabled {
		ids = append(ids, ProviderBanner)
	}
	if p.Birthdays.Enabled {
		ids = append(ids, ProviderBirthdays)
	}
	if p.Notices.Enabled {
		ids = append(ids, ProviderNotices)
	}
	return ids
}

// BannerProviderConfig configures the static promotional slides
type BannerProviderConfig struct {
	Enabled    bool   `toml:"enabled"`
	File       string `toml:"file"`
	Watch      bool   `toml:"watch"`
	IntervalMs int    `toml:"interval_ms"`
	DebounceMs int    `toml:"debounce_ms"`
}

// Validate validates banner provider configuration
func (b BannerProviderConfig) Validate() error {
	if !b.Enabled {
		return nil
	}

	if b.File == "" {
		return errors.New("banner file is required when the provider is enabled")
	}

	if b.IntervalMs != 0 && b.IntervalMs < 50 {
		return errors.New("watch interval must be at least 50ms")
	}

	if b.DebounceMs < 0 {
		return errors.New("debounce time must be non-negative")
	}

	return nil
}

// GetInterval returns the watch polling interval
func (b BannerProviderConfig) GetInterval() time.Duration {
	if b.IntervalMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(b.IntervalMs) * time.Millisecond
}

// GetDebounce returns the watch debounce window
func (b BannerProviderConfig) GetDebounce() time.Duration {
	if b.DebounceMs <= 0 {
		return time.Second
	}
	return time.Duration(b.DebounceMs) * time.Millisecond
}

// PollingProviderConfig configures a provider that re-fetches records periodically
type PollingProviderConfig struct {
	Enabled          bool   `toml:"enabled"`
	RefreshSeconds   int    `toml:"refresh_seconds"`
	FetchTimeoutSecs int    `toml:"fetch_timeout_seconds"`
	Limit            int    `toml:"limit"`
	Timezone         string `toml:"timezone"`
}

// Validate validates polling provider configuration
func (p PollingProviderConfig) Validate() error {
	if p.RefreshSeconds < 0 {
		return errors.New("refresh interval must be non-negative")
	}

	if p.FetchTimeoutSecs < 0 {
		return errors.New("fetch timeout must be non-negative")
	}

	if p.Limit < 0 {
		return errors.New("limit must be non-negative")
	}

	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	return nil
}

// GetRefreshInterval returns the time between fetches
func (p PollingProviderConfig) GetRefreshInterval() time.Duration {
	if p.RefreshSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.RefreshSeconds) * time.Second
}

// GetFetchTimeout returns the per-fetch deadline
func (p PollingProviderConfig) GetFetchTimeout() time.Duration {
	if p.FetchTimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.FetchTimeoutSecs) * time.Second
}

// GetLimit returns the maximum number of slides to produce
func (p PollingProviderConfig) GetLimit() int {
	if p.Limit <= 0 {
		return 10
	}
	return p.Limit
}

// GetLocation returns the timezone used for "today" computations
func (p PollingProviderConfig) GetLocation() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Database backends
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMySQL    = "mysql"
)

// DatabaseConfig contains record store configuration
type DatabaseConfig struct {
	Backend         string `toml:"backend"`
	DSN             string `toml:"dsn"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime_minutes"`
	LogQueries      bool   `toml:"log_queries"`
}

// Validate validates database configuration
func (d DatabaseConfig) Validate() error {
	switch d.Backend {
	case DatabaseSQLite, DatabasePostgres, DatabaseMySQL:
	default:
		return fmt.Errorf("unknown database backend: %q", d.Backend)
	}

	if d.DSN == "" {
		return errors.New("database dsn is required")
	}

	if d.MaxOpenConns < 0 || d.MaxIdleConns < 0 || d.ConnMaxLifetime < 0 {
		return errors.New("connection pool settings must be non-negative")
	}

	return nil
}

// GetMaxOpenConns returns the pool size with default
func (d DatabaseConfig) GetMaxOpenConns() int {
	if d.MaxOpenConns <= 0 {
		return 20
	}
	return d.MaxOpenConns
}

// GetMaxIdleConns returns the idle pool size with default
func (d DatabaseConfig) GetMaxIdleConns() int {
	if d.MaxIdleConns <= 0 {
		return 5
	}
	return d.MaxIdleConns
}

// GetConnMaxLifetime returns the connection lifetime with default
func (d DatabaseConfig) GetConnMaxLifetime() time.Duration {
	if d.ConnMaxLifetime <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(d.ConnMaxLifetime) * time.Minute
}

// LogLevel represents logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`       // debug, info, warn, error
	Verbose    bool   `toml:"verbose"`     // Enable verbose logging
	JSONFormat bool   `toml:"json_format"` // Output logs in JSON format
	File       string `toml:"file"`        // Log to file (optional)
}

// Validate validates logging configuration
func (l LoggingConfig) Validate() error {
	switch LogLevel(l.Level) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	case "":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", l.Level)
	}

	if l.File != "" {
		if !filepath.IsAbs(l.File) {
			return errors.New("log file path must be absolute")
		}

		dir := filepath.Dir(l.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("log file directory does not exist: %s", dir)
		}
	}

	return nil
}

// GetLevel returns the log level with default
func (l LoggingConfig) GetLevel() LogLevel {
	if l.Level == "" {
		return LogLevelInfo
	}
	return LogLevel(l.Level)
}
