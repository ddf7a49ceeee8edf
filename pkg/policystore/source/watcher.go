package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a policy file for changes and triggers reloads. It
// debounces bursts of filesystem events so an editor save (often a
// write followed by a rename) produces a single reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	timer   *time.Timer
}

// WatcherConfig configures a policy file watcher.
type WatcherConfig struct {
	// Path is the policy file to watch.
	Path string

	// DebounceInterval is the quiet period required after the last
	// event before a reload fires. Default: 100ms.
	DebounceInterval time.Duration
}

// NewWatcher creates a policy file watcher.
func NewWatcher(cfg WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path cannot be empty")
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  fsw,
		path:     cfg.Path,
		debounce: cfg.DebounceInterval,
		logger:   logger.With("component", "policystore.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing file events until the context is cancelled or
// Stop is called, invoking onReload after each debounced change. The
// parent directory is watched rather than the file itself so atomic
// replace-by-rename saves keep working.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("policy file watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy file watcher stopped, context cancelled")
			return nil

		case <-w.stopCh:
			w.logger.Info("policy file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcess(event) {
				continue
			}

			w.logger.Debug("policy file event",
				"path", event.Name,
				"op", event.Op.String(),
			)

			w.trigger(func() {
				w.logger.Info("reloading policies", "path", w.path)
				if err := onReload(); err != nil {
					w.logger.Error("policy reload failed", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("policy file watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	return w.watcher.Close()
}

// shouldProcess filters events down to content changes of the watched
// file.
func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path) ||
		strings.HasPrefix(filepath.Base(event.Name), filepath.Base(w.path))
}

// trigger schedules fn after the debounce interval, resetting the timer
// on every new event.
func (w *Watcher) trigger(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, fn)
}
