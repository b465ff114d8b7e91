// Package watch bridges raw fsnotify notifications into the engine's
// normalized file events. Bursts of writes to the same file are coalesced by
// a per-path debounce window; removals and renames flush immediately.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loglens/loglens/internal/util"
)

// EventKind classifies a normalized file event.
type EventKind string

const (
	Created  EventKind = "created"
	Modified EventKind = "modified"
	Removed  EventKind = "removed"
	Renamed  EventKind = "renamed"
)

// FileEvent is one normalized notification about a session file.
type FileEvent struct {
	Path string
	Kind EventKind
}

// Bridge watches the root and every project directory under it.
type Bridge struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration

	events chan FileEvent
	failed chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New creates a bridge for root with the given debounce window. The bridge
// starts delivering on Events() immediately.
func New(root string, debounce time.Duration) (*Bridge, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		watcher:  watcher,
		root:     root,
		debounce: debounce,
		events:   make(chan FileEvent, 100),
		failed:   make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}

	if err := b.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}

	go b.run()
	return b, nil
}

// Events returns the normalized event stream.
func (b *Bridge) Events() <-chan FileEvent {
	return b.events
}

// Failed is closed when the underlying watcher has stopped for good. From
// that point the periodic rescan is the only update source.
func (b *Bridge) Failed() <-chan struct{} {
	return b.failed
}

// Close stops the bridge. Pending debounce timers are cancelled.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for path, timer := range b.timers {
		timer.Stop()
		delete(b.timers, path)
	}
	b.mu.Unlock()

	return b.watcher.Close()
}

// addTree attaches the watcher to root and every directory below it.
func (b *Bridge) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if info.IsDir() {
			return b.watcher.Add(path)
		}
		return nil
	})
}

func (b *Bridge) run() {
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				b.fail()
				return
			}
			b.handle(event)

		case err, ok := <-b.watcher.Errors:
			if !ok {
				b.fail()
				return
			}
			util.LogErrorf("file watcher: %v", err)
		}
	}
}

func (b *Bridge) fail() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		util.LogError("file watcher stopped, falling back to periodic rescan")
	}
	close(b.failed)
}

func (b *Bridge) handle(event fsnotify.Event) {
	// New project directories must be attached before their first session
	// file shows up.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := b.watcher.Add(event.Name); err != nil {
				util.LogWarnf("watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !isSessionFile(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		b.cancelTimer(event.Name)
		b.emit(FileEvent{Path: event.Name, Kind: Created})
	case event.Op.Has(fsnotify.Remove):
		b.cancelTimer(event.Name)
		b.emit(FileEvent{Path: event.Name, Kind: Removed})
	case event.Op.Has(fsnotify.Rename):
		// The old path is gone; the new path arrives as its own Create.
		b.cancelTimer(event.Name)
		b.emit(FileEvent{Path: event.Name, Kind: Renamed})
	case event.Op.Has(fsnotify.Write):
		b.scheduleModify(event.Name)
	}
}

// scheduleModify starts or extends the debounce timer for path. Only the
// trailing edge of a write burst produces an event.
func (b *Bridge) scheduleModify(path string) {
	if b.debounce <= 0 {
		b.emit(FileEvent{Path: path, Kind: Modified})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if timer, ok := b.timers[path]; ok {
		timer.Reset(b.debounce)
		return
	}
	b.timers[path] = time.AfterFunc(b.debounce, func() {
		b.mu.Lock()
		delete(b.timers, path)
		closed := b.closed
		b.mu.Unlock()
		if !closed {
			b.emit(FileEvent{Path: path, Kind: Modified})
		}
	})
}

func (b *Bridge) cancelTimer(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if timer, ok := b.timers[path]; ok {
		timer.Stop()
		delete(b.timers, path)
	}
}

func (b *Bridge) emit(ev FileEvent) {
	select {
	case b.events <- ev:
	default:
		util.LogWarnf("watch event queue full, dropping %s %s", ev.Kind, ev.Path)
	}
}

func isSessionFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".jsonl")
}
