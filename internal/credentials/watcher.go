package credentials

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"alpacon-mcp/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last file event
// before reloading.
const DefaultDebounceInterval = 300 * time.Millisecond

// DefaultPollInterval is used when fsnotify is not available.
const DefaultPollInterval = 5 * time.Second

// WatcherConfig holds configuration for the credential file watcher.
type WatcherConfig struct {
	// PollInterval is the fallback polling interval when fsnotify is not available.
	PollInterval time.Duration

	// Debounce collapses bursts of events into one reload.
	Debounce time.Duration

	// OnReload is called after each successful reload.
	OnReload func()
}

// Watcher reloads a Store when its file is changed by another process,
// e.g. `alpacon-mcp auth set` running while the server is up.
type Watcher struct {
	mu sync.Mutex

	store  *Store
	config WatcherConfig

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	lastModTime time.Time
	polled      bool

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewWatcher creates a watcher for store.
func NewWatcher(store *Store, config WatcherConfig) *Watcher {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Debounce == 0 {
		config.Debounce = DefaultDebounceInterval
	}
	return &Watcher{store: store, config: config}
}

// Start begins watching. The credential directory is created if needed so
// that it can be watched before the first credential is stored.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		logging.Warn("CredentialWatcher", "Cannot create %s, falling back to polling: %v", dir, err)
		go w.pollForChanges()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("CredentialWatcher", "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges()
		return nil
	}
	w.fsWatcher = watcher

	if err := w.fsWatcher.Add(dir); err != nil {
		logging.Warn("CredentialWatcher", "Failed to watch directory %s, falling back to polling: %v", dir, err)
		w.fsWatcher.Close()
		w.fsWatcher = nil
		go w.pollForChanges()
		return nil
	}

	go w.processEvents(w.fsWatcher.Events, w.fsWatcher.Errors)

	logging.Info("CredentialWatcher", "Watching %s for credential changes", w.store.Path())
	return nil
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("CredentialWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.store.Path()) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.Debug("CredentialWatcher", "Credential file event: %s", event)
	w.triggerReloadDebounced()
}

func (w *Watcher) triggerReloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if !running {
			return
		}

		if err := w.store.Reload(); err != nil {
			return
		}
		if w.config.OnReload != nil {
			w.config.OnReload()
		}
	})
}

func (w *Watcher) pollForChanges() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.checkForChanges()

	for {
		select {
		case <-w.stopCh:
			return

		case <-ticker.C:
			if w.checkForChanges() {
				logging.Debug("CredentialWatcher", "Credential file change detected via polling")
				w.triggerReloadDebounced()
			}
		}
	}
}

// checkForChanges compares the file's modification time with the last one seen.
func (w *Watcher) checkForChanges() bool {
	var mod time.Time
	if info, err := os.Stat(w.store.Path()); err == nil {
		mod = info.ModTime()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	changed := w.polled && !mod.Equal(w.lastModTime)
	w.lastModTime = mod
	w.polled = true
	return changed
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("CredentialWatcher", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}

	logging.Info("CredentialWatcher", "Stopped credential watcher")
	return nil
}

// IsRunning returns whether the watcher is currently active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
