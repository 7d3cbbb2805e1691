// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package engine is the facade: lifecycle, public entry points, and the
// coordination between cache, filters, handlers, the task queue, the
// worker pool, and the OS watcher. Per DESIGN NOTES §9, it is an
// explicit handle type returned by New/Init rather than a hidden
// process-wide singleton.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/nshi/falcon/lib/automaxprocs"
	"github.com/nshi/falcon/lib/cache"
	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/events"
	"github.com/nshi/falcon/lib/ferr"
	"github.com/nshi/falcon/lib/filter"
	"github.com/nshi/falcon/lib/logger"
	"github.com/nshi/falcon/lib/metrics"
	"github.com/nshi/falcon/lib/persist"
	"github.com/nshi/falcon/lib/queue"
	"github.com/nshi/falcon/lib/semaphore"
	"github.com/nshi/falcon/lib/statutil"
	"github.com/nshi/falcon/lib/watcher"
	"github.com/nshi/falcon/lib/worker"
)

var log = logger.New("engine")

// Options configures Init. Zero values fall back to the documented
// defaults (§4.5).
type Options struct {
	// CachePath, if non-empty, is loaded on Init. Shutdown saves only to
	// the path passed to it, which must be the same value across a run,
	// per §6.5.
	CachePath   string
	CacheFormat persist.Format
	// Separator is the path component separator; defaults to "/".
	Separator string
	BatchSize int
	// MaxWorkers is MAX_WORKERS; defaults to DefaultMaxWorkers.
	MaxWorkers int
	// DirSlots bounds concurrent directory descent; see worker.DefaultDirSlots.
	DirSlots int
	// Metrics is optional; nil disables instrumentation entirely.
	Metrics *metrics.Collector
}

// Engine is the process-wide handle returned by New. It must be
// initialised with Init before any other method is called.
type Engine struct {
	lifecycleMu sync.Mutex
	initialized bool

	opts Options

	cache      *cache.Cache
	handlers   *events.Registry
	filters    *filter.Chain
	watcher    *watcher.Watcher
	dispatcher *queue.Dispatcher
	pool       *worker.Pool
	mx         *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns an uninitialised engine handle.
func New() *Engine {
	return &Engine{}
}

// Filters exposes the filter chain for registration before/after Init.
func (e *Engine) Filters() *filter.Chain { return e.filters }

// Handlers exposes the handler registry for registration before/after Init.
func (e *Engine) Handlers() *events.Registry { return e.handlers }

func normalize(sep, name string) string {
	if name == sep {
		return name
	}
	return strings.TrimSuffix(name, sep)
}

// Init initialises the cache, handler registry, watcher, and worker
// pool; loads the cache file if opts.CachePath is set, then enqueues one
// task per top-level cache entry so the first pass validates on-disk
// state. Calling Init twice without an intervening Shutdown is a usage
// error.
func (e *Engine) Init(opts Options) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.initialized {
		log.Criticalf("Init called while already initialized")
		return ferr.New(ferr.Usage, "Engine.Init", nil)
	}

	if opts.Separator == "" {
		opts.Separator = "/"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = queue.DefaultBatchSize
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = worker.DefaultMaxWorkers
	}
	if opts.DirSlots <= 0 {
		opts.DirSlots = worker.DefaultDirSlots
	}
	e.opts = opts
	e.mx = opts.Metrics

	e.cache = cache.New(opts.Separator)
	e.filters = filter.New()
	e.handlers = events.New(e.cache, e.mx)

	var pool *worker.Pool
	e.dispatcher = queue.New(opts.BatchSize, func(batch []queue.Task) {
		pool.Submit(batch)
	}, e.mx)

	pool = worker.New(opts.MaxWorkers, opts.DirSlots, e.processTask, e.dispatcher.Done)
	e.pool = pool

	w, err := watcher.New(func(path string) { e.enqueueTask(path, true) }, e.mx)
	if err != nil {
		log.Criticalf("watcher init failed: %v", err)
		return err
	}
	e.watcher = w

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.pool.Start(e.ctx)

	if opts.CachePath != "" {
		if err := e.cache.Load(opts.CachePath, opts.CacheFormat); err != nil {
			log.Criticalf("cache load failed, starting empty: %v", err)
		}
	}
	e.cache.ForEachTop(func(en entry.Entry) {
		e.enqueueTask(en.Name, en.Watch)
	})

	e.initialized = true
	return nil
}

func (e *Engine) checkInitialized(op string) error {
	if !e.initialized {
		log.Criticalf("%s called before Init", op)
		return ferr.New(ferr.Usage, op, nil)
	}
	return nil
}

func (e *Engine) enqueueTask(name string, watch bool) {
	e.dispatcher.Enqueue(entry.Entry{Name: name, Watch: watch})
}

// Add registers name for monitoring if it isn't already known; a no-op
// if it's already in the cache.
func (e *Engine) Add(name string, watch bool) error {
	if err := e.checkInitialized("Engine.Add"); err != nil {
		return err
	}
	name = normalize(e.opts.Separator, name)
	if e.cache.Has(name) {
		return nil
	}
	e.enqueueTask(name, watch)
	return nil
}

// Has reports whether name is currently cached.
func (e *Engine) Has(name string) bool {
	if !e.initialized {
		return false
	}
	return e.cache.Has(normalize(e.opts.Separator, name))
}

// Delete blocks until the queue is idle, then removes name and every
// descendant from the cache. No events are synthesised (§9 Open Questions).
func (e *Engine) Delete(name string) error {
	if err := e.checkInitialized("Engine.Delete"); err != nil {
		return err
	}
	e.dispatcher.Drain()
	return e.cache.DeleteSubtree(normalize(e.opts.Separator, name))
}

// Clear blocks until the queue is idle, then empties the cache and the
// watcher.
func (e *Engine) Clear() error {
	if err := e.checkInitialized("Engine.Clear"); err != nil {
		return err
	}
	e.dispatcher.Drain()
	e.cache.Clear()
	e.watcher.Clear()
	return nil
}

// SetWatch flips a cached entry's watch flag and (un)registers it with
// the watcher accordingly. Fails if name is unknown.
func (e *Engine) SetWatch(name string, watch bool) error {
	if err := e.checkInitialized("Engine.SetWatch"); err != nil {
		return err
	}
	updated, err := e.cache.SetWatch(normalize(e.opts.Separator, name), watch)
	if err != nil {
		return err
	}
	if watch {
		e.watcher.Add(updated)
	} else {
		e.watcher.Delete(updated)
	}
	return nil
}

// Shutdown tears down the engine. If wait, it first blocks until the
// queue is idle, forcing dispatch each cycle; otherwise in-flight
// batches are abandoned and pending tasks are freed without processing.
// If cachePath is non-empty, the cache is saved there before teardown.
func (e *Engine) Shutdown(cachePath string, wait bool) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if err := e.checkInitialized("Engine.Shutdown"); err != nil {
		return err
	}

	if wait {
		e.dispatcher.Drain()
	}
	e.cancel()
	e.pool.Stop()
	if err := e.watcher.Close(); err != nil {
		log.Warnln("shutdown: watcher close:", err)
	}

	var saveErr error
	if cachePath != "" {
		if err := e.cache.Save(cachePath, e.opts.CacheFormat); err != nil {
			log.Criticalf("cache save failed: %v", err)
			saveErr = err
		}
	}
	e.cache.Clear()
	e.initialized = false
	return saveErr
}

// processTask implements the worker diff routine of §4.6.
func (e *Engine) processTask(ctx context.Context, task queue.Task, dirSlots *semaphore.Semaphore) {
	cached, hasCached := e.cache.Get(task.Name)

	fi, statErr := os.Lstat(task.Name)
	if statErr != nil {
		// A stat failure, of any kind and regardless of prior cache
		// state, never synthesizes a delete: only the separate
		// existence probe below may legitimately declare the path
		// gone. Mirrors original falcon's walker.c, where g_stat
		// failing routes straight to the failed queue, before the
		// code ever reaches its own g_file_test existence check.
		e.dispatcher.Fail(task)
		return
	}

	task.Mode = fi.Mode()
	if fi.Mode().IsRegular() {
		task.Size = uint64(fi.Size())
	} else {
		task.Size = 0
	}
	task.MTime = statutil.MinMTime(fi)

	// Existence probe, independent of the stat above: this is the only
	// check allowed to declare the path gone.
	_, existErr := os.Lstat(task.Name)
	exists := existErr == nil

	if !exists || e.filters.Matches(task) {
		if hasCached {
			code := events.FileDeleted
			if cached.IsDir() {
				code = events.DirDeleted
			}
			e.handlers.Dispatch(cached, code)
		}
		return
	}

	switch {
	case task.IsDir():
		e.processDir(ctx, task, cached, hasCached, dirSlots)
	case task.IsRegular():
		e.processFile(task, cached, hasCached)
	default:
		// Other types: treated as if not present, no event.
	}
}

func (e *Engine) processFile(task queue.Task, cached entry.Entry, hasCached bool) {
	code := events.None
	switch {
	case !hasCached:
		code = events.FileCreated
	case !cached.Equal(task):
		code = events.FileChanged
	}
	if code != events.None {
		e.handlers.Dispatch(task, code)
	}
}

func (e *Engine) processDir(ctx context.Context, task queue.Task, cached entry.Entry, hasCached bool, dirSlots *semaphore.Semaphore) {
	code := events.None
	switch {
	case !hasCached:
		code = events.DirCreated
	case !cached.Equal(task):
		code = events.DirChanged
	}

	// Re-enqueue cached children before reading the live directory, so
	// vanished entries are detected even if the live directory is full
	// of new entries that would otherwise fill the queue first.
	e.cache.ForEachChild(task.Name, func(child entry.Entry) {
		if child.Name != task.Name {
			e.enqueueTask(child.Name, child.Watch)
		}
	})

	dirSlots.Take(1)
	entries, err := os.ReadDir(task.Name)
	dirSlots.Give(1)
	if err != nil {
		log.Warnln("processDir: readdir failed for", task.Name, err)
	} else {
		for _, de := range entries {
			childPath := filepath.Join(task.Name, de.Name())
			watch := task.Watch
			if cc, ok := e.cache.Get(childPath); ok {
				watch = cc.Watch
			}
			e.enqueueTask(childPath, watch)
		}
	}

	if task.Watch {
		e.watcher.Add(task)
	}

	if code != events.None {
		e.handlers.Dispatch(task, code)
	}
}
