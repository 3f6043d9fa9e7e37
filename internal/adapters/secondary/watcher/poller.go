package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// PollingWatcher reports changes to a single file by polling its size, mtime and checksum
type PollingWatcher struct {
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	current fileState
	events  chan ports.FileChangeEvent
	watched bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// fileState is the last observed version of the watched file
type fileState struct {
	exists   bool
	size     int64
	modTime  time.Time
	checksum string
}

// NewPollingWatcher creates a new polling-based file watcher
func NewPollingWatcher(interval, debounce time.Duration, logger *slog.Logger) *PollingWatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &PollingWatcher{
		interval: interval,
		debounce: debounce,
		logger:   logger.With("service", "file_watcher"),
		events:   make(chan ports.FileChangeEvent, 10),
		stopCh:   make(chan struct{}),
	}
}

// Watch starts watching path. The file must exist when watching starts. A watcher
// serves one path; the returned channel closes after Stop.
func (w *PollingWatcher) Watch(ctx context.Context, path string) (<-chan ports.FileChangeEvent, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	initial, err := w.scan(absPath)
	if err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}
	if !initial.exists {
		return nil, fmt.Errorf("initial scan: %s does not exist", absPath)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, errors.New("watcher stopped")
	}
	if w.watched {
		w.mu.Unlock()
		return nil, errors.New("watcher already watching a file")
	}
	w.watched = true
	w.current = initial
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx, absPath)
	}()

	return w.events, nil
}

// Stop stops polling and closes the event channel. Safe to call more than once.
func (w *PollingWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	close(w.events)

	return nil
}

func (w *PollingWatcher) pollLoop(ctx context.Context, path string) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastEvent time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
		}

		changeType, changed, err := w.checkForChanges(path)
		if err != nil {
			w.logger.Warn("Watch error", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		if !changed || time.Since(lastEvent) < w.debounce {
			continue
		}

		event := ports.FileChangeEvent{
			Path:      path,
			Type:      changeType,
			Timestamp: time.Now(),
		}

		select {
		case w.events <- event:
			lastEvent = event.Timestamp
			w.logger.Debug("File changed",
				slog.String("path", path),
				slog.String("change", changeType.String()),
			)
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

// checkForChanges compares the file with the last observed state and records the new one
func (w *PollingWatcher) checkForChanges(path string) (ports.ChangeType, bool, error) {
	w.mu.Lock()
	previous := w.current
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return 0, false, fmt.Errorf("stat file: %w", err)
		}
		if !previous.exists {
			return 0, false, nil
		}
		w.record(fileState{})
		return ports.Deleted, true, nil
	}

	// Skip the checksum when size and mtime are unchanged
	if previous.exists && previous.size == info.Size() && previous.modTime.Equal(info.ModTime()) {
		return 0, false, nil
	}

	checksum, err := calculateChecksum(path)
	if err != nil {
		return 0, false, fmt.Errorf("calculate checksum: %w", err)
	}

	next := fileState{exists: true, size: info.Size(), modTime: info.ModTime(), checksum: checksum}
	w.record(next)

	switch {
	case !previous.exists:
		return ports.Created, true, nil
	case previous.checksum != checksum:
		return ports.Modified, true, nil
	default:
		return 0, false, nil
	}
}

func (w *PollingWatcher) record(state fileState) {
	w.mu.Lock()
	w.current = state
	w.mu.Unlock()
}

func (w *PollingWatcher) scan(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileState{}, nil
		}
		return fileState{}, fmt.Errorf("stat file: %w", err)
	}

	checksum, err := calculateChecksum(path)
	if err != nil {
		return fileState{}, fmt.Errorf("calculate checksum: %w", err)
	}

	return fileState{exists: true, size: info.Size(), modTime: info.ModTime(), checksum: checksum}, nil
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(path string) (string, error) {
	file, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

var _ ports.FileWatcher = (*PollingWatcher)(nil)
