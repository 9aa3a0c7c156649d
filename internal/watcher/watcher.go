// Package watcher implements the kernel's filesystem watcher (C8): it
// watches a session's protected paths for out-of-band changes (an agent
// editing a file directly, bypassing the shim) and restores them from the
// snapshot store.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vetohq/veto/internal/pathmatch"
	"github.com/vetohq/veto/internal/snapshot"
)

// debounceWindow coalesces the burst of events an editor's save-as-rename
// or an atomic write produces into a single restore check.
const debounceWindow = 100 * time.Millisecond

// EventKind classifies a coalesced watcher event for Stats reporting.
type EventKind string

const (
	EventChanged    EventKind = "changed"
	EventRemoved    EventKind = "removed"
	EventRestored   EventKind = "restored"
	EventWatchError EventKind = "watch_error"
)

// StatEvent is one ring-buffer entry for `veto status`/`veto watch` to read
// back.
type StatEvent struct {
	Kind EventKind
	Path string
	Time time.Time
}

// Watcher watches a set of directories and restores protected files that
// change outside the shim, consulting a snapshot.Store for the known-good
// content.
type Watcher struct {
	fsw     *fsnotify.Watcher
	store   *snapshot.Store
	include []string
	exclude []string

	mu       sync.Mutex
	timers   map[string]*time.Timer
	stats    []StatEvent
	maxStats int

	done chan struct{}
}

// New creates a Watcher rooted at roots, restoring any protected file
// matched by include/exclude (per pathmatch.IsProtected) the instant it
// changes.
func New(store *snapshot.Store, include, exclude []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw: fsw, store: store, include: include, exclude: exclude,
		timers: map[string]*time.Timer{}, maxStats: 200,
		done: make(chan struct{}),
	}, nil
}

var skipDirNames = map[string]bool{
	".git": true, "node_modules": true, ".veto": true, ".hg": true, ".svn": true,
}

// AddRecursive registers root and every subdirectory under it, skipping
// VCS and dependency directories.
func (w *Watcher) AddRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if skipDirNames[info.Name()] && path != root {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		return nil
	})
}

func statIsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Close stops the underlying fsnotify watcher and the debounce loop.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

// Stats returns a snapshot of recently recorded events, most recent last.
func (w *Watcher) Stats() []StatEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]StatEvent, len(w.stats))
	copy(out, w.stats)
	return out
}

func (w *Watcher) record(kind EventKind, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats = append(w.stats, StatEvent{Kind: kind, Path: path, Time: time.Now()})
	if len(w.stats) > w.maxStats {
		w.stats = w.stats[len(w.stats)-w.maxStats:]
	}
}

func (w *Watcher) isProtected(path string) bool {
	return pathmatch.IsProtected(path, w.include, w.exclude)
}

// Run processes fsnotify events until Close is called. It should be run in
// its own goroutine.
func (w *Watcher) Run() {
	for {
		select {
		case <-w.done:
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
			w.record(EventWatchError, err.Error())
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !w.isProtected(ev.Name) {
		return
	}

	if ev.Op&fsnotify.Create == fsnotify.Create {
		info, err := statIsDir(ev.Name)
		if err == nil && info {
			_ = w.fsw.Add(ev.Name)
		}
	}

	w.debounce(ev.Name, func() {
		w.checkAndRestore(ev.Name, ev.Op)
	})
}

func (w *Watcher) debounce(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(debounceWindow, fn)
}

func (w *Watcher) checkAndRestore(path string, op fsnotify.Op) {
	if op&fsnotify.Remove == fsnotify.Remove {
		w.record(EventRemoved, path)
		if err := w.store.Restore(path); err == nil {
			w.record(EventRestored, path)
		}
		return
	}

	changed, err := w.store.Changed(path)
	if err != nil || !changed {
		return
	}

	w.record(EventChanged, path)
	if err := w.store.Restore(path); err == nil {
		w.record(EventRestored, path)
	}
}
