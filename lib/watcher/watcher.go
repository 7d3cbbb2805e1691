// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package watcher implements the OS watcher layer of §4.7: a live
// notification source, backed by fsnotify, that converts raw filesystem
// notifications into tasks. It performs no classification itself — the
// worker is the single source of truth for event typing.
package watcher

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/ferr"
	"github.com/nshi/falcon/lib/logger"
	"github.com/nshi/falcon/lib/metrics"
	"github.com/nshi/falcon/lib/suturewrap"
)

var log = logger.New("watcher")

// Watcher is the OS-notification subsystem. Its own mutex guards the
// watched-directory map; per §5's lock order, it is never held while
// calling back into the engine.
type Watcher struct {
	fsw     *fsnotify.Watcher
	watched map[string]struct{}
	enqueue func(path string)
	mx      *metrics.Collector
	svc     *suturewrap.Service

	// mu is intentionally separate from the engine mutex: the watcher's
	// event loop must never hold it while calling enqueue.
	mu sync.Mutex
}

// New returns a Watcher whose event loop calls enqueue with the changed
// path whenever a notification arrives for a watched directory. enqueue
// is expected to build a Task with Watch=true and hand it to the
// dispatcher, per §4.7.
func New(enqueue func(path string), mx *metrics.Collector) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferr.New(ferr.Runtime, "watcher.New", err)
	}
	w := &Watcher{
		fsw:     fsw,
		watched: make(map[string]struct{}),
		enqueue: enqueue,
		mx:      mx,
	}
	w.svc = suturewrap.AsService(w.loop, "watcher")
	go w.svc.Serve()
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.enqueue(filepath.Clean(ev.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnln("watcher backend error:", err)
		}
	}
}

// Add starts observing e's directory, idempotent per name. Returns
// false if already observed or if e is not a directory.
func (w *Watcher) Add(e entry.Entry) bool {
	if !e.IsDir() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[e.Name]; ok {
		return false
	}
	if err := w.fsw.Add(e.Name); err != nil {
		log.Warnln("watcher: add failed for", e.Name, err)
		return false
	}
	w.watched[e.Name] = struct{}{}
	w.mx.SetWatchedDirectories(len(w.watched))
	return true
}

// Delete stops observing e's directory. Returns whether anything was
// removed.
func (w *Watcher) Delete(e entry.Entry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[e.Name]; !ok {
		return false
	}
	_ = w.fsw.Remove(e.Name)
	delete(w.watched, e.Name)
	w.mx.SetWatchedDirectories(len(w.watched))
	return true
}

// IsWatched reports whether name is currently observed.
func (w *Watcher) IsWatched(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[name]
	return ok
}

// Clear stops all observations.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name := range w.watched {
		_ = w.fsw.Remove(name)
	}
	w.watched = make(map[string]struct{})
	w.mx.SetWatchedDirectories(0)
}

// Close tears down the watcher's event loop and backend.
func (w *Watcher) Close() error {
	w.svc.Stop()
	return w.fsw.Close()
}
