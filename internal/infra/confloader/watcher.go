package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to registered configuration files.
//
// Registering a file watches its directory, which also catches editors
// that replace the file by rename. Events for files nobody registered
// are dropped before the handlers run.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger
	done   chan struct{}
	stop   sync.Once

	mu       sync.RWMutex
	files    map[string]struct{}
	handlers []func(string)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a new configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:     fs,
		logger: slog.Default(),
		done:   make(chan struct{}),
		files:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Watch registers a configuration file. Its directory is added to the
// underlying notifier, and change events for the file start flowing to
// the handlers once Start runs.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	if err := w.fs.Add(dir); err != nil {
		w.logger.Error("failed to watch directory",
			"path", dir,
			"error", err,
		)
		return err
	}

	w.mu.Lock()
	w.files[path] = struct{}{}
	w.mu.Unlock()

	w.logger.Debug("watching configuration file", "file", path)
	return nil
}

// OnChange registers a handler called with the path of a registered
// file after it is written or recreated.
func (w *Watcher) OnChange(handler func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start dispatches change events until Stop is called.
// This function blocks; use StartAsync to run it in the background.
func (w *Watcher) Start() {
	w.logger.Info("configuration watcher started")

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(event.Name)
			if !w.watched(path) {
				continue
			}
			w.logger.Debug("configuration file changed",
				"file", path,
				"op", event.Op.String(),
			)
			w.notify(path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. Calling it again is a no-op.
func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.logger.Info("configuration watcher stopped")
	})
	return err
}

// watched reports whether a path was registered via Watch.
func (w *Watcher) watched(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[path]
	return ok
}

// notify calls the handlers outside the lock so a handler can register
// further files.
func (w *Watcher) notify(path string) {
	w.mu.RLock()
	handlers := make([]func(string), len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, h := range handlers {
		h(path)
	}
}
