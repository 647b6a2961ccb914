package config

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/neopult/neopult/logger"
)

// ReloadCallback is invoked with the freshly reloaded host config after a
// debounced file-system change settles.
type ReloadCallback func(*HostConfig) error

// Watcher watches a host config file for changes and triggers reload
// callbacks, debouncing rapid successive writes from editors that save via
// rename-and-replace.
type Watcher struct {
	channelHome    string
	watcher        *fsnotify.Watcher
	mu             sync.Mutex
	callbacks      []ReloadCallback
	debouncePeriod time.Duration
	debounceTimer  *time.Timer
	stop           chan struct{}
}

// NewWatcher creates a watcher for the host config belonging to channelHome.
// If the config file does not exist yet, the watcher watches its parent
// directory instead and picks it up once created.
func NewWatcher(channelHome string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path := configFilePath(channelHome)
	if err := fw.Add(path); err != nil {
		if err := fw.Add(channelHome); err != nil {
			fw.Close()
			return nil, err
		}
	}

	return &Watcher{
		channelHome:    channelHome,
		watcher:        fw,
		debouncePeriod: 500 * time.Millisecond,
		stop:           make(chan struct{}),
	}, nil
}

// OnReload registers a callback run after each debounced reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if isBackupFile(event.Name) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("config watcher error", "error", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	cfg, _, err := LoadHostConfig(w.channelHome)
	if err != nil {
		logger.Errorw("host config reload failed", "error", err)
		return
	}

	w.mu.Lock()
	callbacks := append([]ReloadCallback(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			logger.Errorw("host config reload callback failed", "error", err)
		}
	}
}

func isBackupFile(name string) bool {
	return strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp")
}
