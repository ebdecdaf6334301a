package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 1500 * time.Millisecond

// Watcher reloads a value from a file or directory whenever it changes and
// hands the result to every registered handler. Bursts of events within the
// debounce window cause a single reload.
type Watcher[T any] struct {
	path     string
	load     func(path string) (T, error)
	logger   *slog.Logger
	debounce time.Duration
	match    func(name string) bool
	onError  func(error)

	mu       sync.Mutex
	handlers map[int]func(T)
	nextID   int
	fsw      *fsnotify.Watcher
	stop     context.CancelFunc
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets how long events must settle before a reload. Default 1.5s.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) { w.debounce = d }
}

// WithErrorHandler receives load errors, which are otherwise only logged.
func WithErrorHandler[T any](fn func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) { w.onError = fn }
}

// WithFilter limits reloads to events on base names accepted by match.
func WithFilter[T any](match func(name string) bool) WatcherOption[T] {
	return func(w *Watcher[T]) { w.match = match }
}

// NewWatcher returns a stopped watcher for path. load is called with path
// on every settled change.
func NewWatcher[T any](path string, load func(path string) (T, error), logger *slog.Logger, opts ...WatcherOption[T]) *Watcher[T] {
	w := &Watcher[T]{
		path:     path,
		load:     load,
		logger:   logger,
		debounce: defaultDebounce,
		handlers: make(map[int]func(T)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers fn and returns a function that removes it.
func (w *Watcher[T]) OnReload(fn func(T)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.handlers, id)
	}
}

// Start watches path in the background until ctx ends or Stop is called.
func (w *Watcher[T]) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(w.path); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.fsw, w.stop, w.done = fsw, cancel, done
	w.mu.Unlock()

	w.logger.Info("Watching for changes", "path", w.path, "debounce", w.debounce)
	go func() {
		defer close(done)
		w.loop(ctx, fsw)
	}()
	return nil
}

// Stop ends the watch loop, waits for it to exit and releases the watcher.
// Stopping a watcher that is not running is a no-op. Handlers must not
// call Stop.
func (w *Watcher[T]) Stop() error {
	w.mu.Lock()
	fsw, cancel, done := w.fsw, w.stop, w.done
	w.fsw, w.stop, w.done = nil, nil, nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	cancel()
	<-done
	return fsw.Close()
}

func (w *Watcher[T]) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Watcher stopped", "path", w.path)
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.wants(ev) {
				w.logger.Debug("Change detected", "name", ev.Name, "op", ev.Op.String())
				settle.Reset(w.debounce)
			}

		case <-settle.C:
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("Watcher error", "path", w.path, "error", err)
				continue
			}
			w.logger.Warn("Event queue overflowed, reloading", "path", w.path)
			settle.Reset(w.debounce)
		}
	}
}

// wants reports whether ev may change the loaded value. Editors that save
// by replacing a file emit Create or Rename rather than Write.
func (w *Watcher[T]) wants(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return w.match == nil || w.match(filepath.Base(ev.Name))
}

func (w *Watcher[T]) reload() {
	value, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("Reload failed", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	handlers := make([]func(T), 0, len(w.handlers))
	for id := range w.nextID {
		if fn, ok := w.handlers[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	w.mu.Unlock()

	w.logger.Info("Reloaded", "path", w.path, "handlers", len(handlers))
	for _, fn := range handlers {
		fn(value)
	}
}
