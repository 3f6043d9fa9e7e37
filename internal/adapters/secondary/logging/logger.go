package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// Closer releases the log file, if one was opened
type Closer func() error

// New builds the process logger from cfg. Output goes to out, and additionally to
// cfg.File when set. The returned Closer must be called on shutdown.
func New(cfg entities.LoggingConfig, out io.Writer) (*slog.Logger, Closer, error) {
	if out == nil {
		out = os.Stderr
	}

	closer := func() error { return nil }
	writer := out

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640) // #nosec G304 - path comes from validated config
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		writer = io.MultiWriter(out, file)
		closer = file.Close
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.GetLevel()),
		AddSource: cfg.Verbose,
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), closer, nil
}

// ParseLevel maps a configured level to its slog counterpart. Unknown values map to info.
func ParseLevel(level entities.LogLevel) slog.Level {
	switch level {
	case entities.LogLevelDebug:
		return slog.LevelDebug
	case entities.LogLevelWarn:
		return slog.LevelWarn
	case entities.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
