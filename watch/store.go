package watch

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/synapse/server/session"
)

const debounceInterval = 100 * time.Millisecond

// StoreWatcher watches the persisted history document via fsnotify and
// reloads the in-memory collection when another process rewrites it.
// Best-effort only: it narrows the window of multi-process divergence, it
// does not close it.
type StoreWatcher struct {
	store   session.Store
	watcher *fsnotify.Watcher

	timerMu sync.Mutex
	timer   *time.Timer
	done    chan struct{}
}

func NewStoreWatcher(store session.Store) *StoreWatcher {
	return &StoreWatcher{
		store: store,
		done:  make(chan struct{}),
	}
}

func (w *StoreWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	// Watch the directory, not the file: the store removes the document when
	// the collection empties and recreates it on the next save.
	if err := watcher.Add(filepath.Dir(w.store.Path())); err != nil {
		watcher.Close()
		return err
	}

	go w.eventLoop()
	slog.Info("StoreWatcher started", "path", w.store.Path())
	return nil
}

func (w *StoreWatcher) Stop() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	slog.Info("StoreWatcher stopped")
}

// CleanupConnection implements Watcher; the store watcher holds no
// per-connection state.
func (w *StoreWatcher) CleanupConnection(connID string) {}

func (w *StoreWatcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.store.Path()) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("store watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of filesystem events into one reload.
func (w *StoreWatcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceInterval, func() {
		if err := w.store.Reload(); err != nil {
			slog.Warn("failed to reload session store", "error", err)
			return
		}
		slog.Info("session store reloaded after external change")
	})
}
