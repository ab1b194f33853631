// Package assets contains the glue between external asset producers and the
// engine's host thread. Decoding stays external: the watcher only reports
// which files changed, and the game decides what to re-upload.
package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/aurora/engine/containers"
	"github.com/spaghettifunk/aurora/engine/core"
)

// Watcher collects filesystem change notifications on a background goroutine
// and hands them to the host thread in per-frame batches. Resource handles
// never cross the goroutine boundary, only paths do.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	done     chan struct{}
	isClosed bool

	mutex   sync.Mutex
	pending *containers.RingQueue[string]
}

// NewWatcher creates a watcher buffering up to capacity pending paths.
// Changes beyond the buffer are dropped with a warning until the host drains.
func NewWatcher(capacity int) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		pending:  containers.NewRingQueue[string](capacity),
	}
	go w.start()
	return w, nil
}

// Add watches a directory tree recursively.
func (w *Watcher) Add(root string) error {
	if w.isClosed {
		return errors.New("watcher instance already closed")
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsnotify.Add(path)
		}
		return nil
	})
}

// Drain hands every change collected since the previous call to fn, on the
// caller's thread. The frame loop calls this once per frame.
func (w *Watcher) Drain(fn func(path string)) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	for !w.pending.IsEmpty() {
		path, err := w.pending.Dequeue()
		if err != nil {
			return
		}
		fn(path)
	}
}

func (w *Watcher) Close() error {
	if w.isClosed {
		return nil
	}
	w.isClosed = true
	close(w.done)
	return w.fsnotify.Close()
}

func (w *Watcher) start() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				w.enqueue(event.Name)
			}
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %v", err)
		}
	}
}

func (w *Watcher) enqueue(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if err := w.pending.Enqueue(path); err != nil {
		core.LogWarn("asset watcher buffer full, dropping change for '%s'", path)
	}
}
