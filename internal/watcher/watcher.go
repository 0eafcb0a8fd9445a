// Package watcher is the fsnotify-based fallback reindex trigger: when
// an editor doesn't send textDocument/didSave (or isn't attached at
// all), filesystem writes to manifest-known source files still drive
// incremental reindexing, debounced so a burst of saves coalesces into
// one reindex per file.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lc168/goclangd/internal/config"
	"github.com/lc168/goclangd/internal/debug"
)

// Watcher monitors the directories containing manifest files and
// debounces write events before invoking OnChange.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debounce  time.Duration
	onChange  func(path string)
	knownFile map[string]bool

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher over the given set of canonical source file
// paths, watching each file's containing directory (fsnotify has no
// per-file watch primitive on most platforms, so the directory is
// watched and events are filtered down to known files).
func New(cfg *config.Config, knownFiles []string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:       fsw,
		debounce:  time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond,
		onChange:  onChange,
		knownFile: make(map[string]bool, len(knownFiles)),
		pending:   make(map[string]*time.Timer),
	}

	dirs := make(map[string]bool)
	for _, f := range knownFiles {
		w.knownFile[f] = true
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			debug.LogIndexing("watcher: failed to watch %s: %v", dir, err)
		}
	}

	return w, nil
}

// Run processes fsnotify events until ctx is cancelled. It blocks, so
// callers run it in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogIndexing("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	path := ev.Name
	if !w.knownFile[path] {
		return
	}
	w.schedule(path)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.onChange(path)
	})
}
