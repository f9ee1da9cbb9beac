package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mcpstat/internal/logging"
)

// Watcher hot-reloads the logging section when the config file changes.
// Only logging settings are applied at runtime; database and audit paths are
// fixed for the tracker's lifetime, so changing them requires a restart.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	lastReload  time.Time
	debounceDur time.Duration
	running     bool
	doneCh      chan struct{}
}

// NewWatcher creates a watcher for the given config file path. The file does
// not need to exist yet; its directory does.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		path:        path,
		debounceDur: 500 * time.Millisecond, // editors fire several events per save
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop exits when ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory: editors replace files on save, which breaks a
	// direct file watch.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.loop(ctx)
	logging.Get(logging.CategoryConfig).Info("Watching %s for logging config changes", w.path)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.maybeReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Warn("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) maybeReload() {
	w.mu.Lock()
	if time.Since(w.lastReload) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		logging.Get(logging.CategoryConfig).Error("Config reload failed: %v", err)
		return
	}
	logging.Reload(cfg.Logging.Settings)
	logging.Get(logging.CategoryConfig).Info("Logging settings reloaded (debug=%v level=%s)",
		cfg.Logging.DebugMode, cfg.Logging.Level)
}

// Stop ends the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.watcher.Close()
	<-w.doneCh
}
