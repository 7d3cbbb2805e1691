// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package queue implements the task queue and its batching dispatcher:
// two FIFO queues (pending, failed) guarded by the engine mutex, and the
// policy deciding when pending tasks become a batch handed to the
// worker pool.
package queue

import (
	"sync"

	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/metrics"
)

// DefaultBatchSize is BATCH_SIZE from §4.5.
const DefaultBatchSize = 20

// Task is an owned entry record queued for walking/diffing.
type Task = entry.Entry

// Dispatcher owns the pending/failed queues and the batch-submission
// policy described in §4.5. Its mutex is the "engine mutex" referred to
// throughout §5.
type Dispatcher struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending      []Task
	pendingIndex map[string]struct{}
	failed       []Task

	batchSize int
	running   int // R: batches currently scheduled/in-flight

	submit func([]Task)
	mx     *metrics.Collector
}

// New returns a dispatcher with the given batch size that hands drained
// batches to submit. submit must not block on anything the dispatcher
// itself might be holding (it is invoked on its own goroutine).
func New(batchSize int, submit func([]Task), mx *metrics.Collector) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	d := &Dispatcher{
		pendingIndex: make(map[string]struct{}),
		batchSize:    batchSize,
		submit:       submit,
		mx:           mx,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Enqueue appends e to pending unless a task with the same name is
// already pending (the existing task will observe e's state when it
// runs), then re-runs the dispatch policy.
func (d *Dispatcher) Enqueue(e Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.pendingIndex[e.Name]; !exists {
		d.pending = append(d.pending, e)
		d.pendingIndex[e.Name] = struct{}{}
		d.mx.TaskEnqueued()
	}
	d.dispatchLocked(false)
}

// dispatchLocked implements policy F(force) of §4.5. Caller holds mu.
func (d *Dispatcher) dispatchLocked(force bool) {
	l := len(d.pending)
	if l == 0 {
		return
	}
	if force || l == d.batchSize || d.running == 0 {
		batch := d.pending
		d.pending = nil
		d.pendingIndex = make(map[string]struct{})
		d.running++
		d.mx.BatchDispatched()
		go d.submit(batch)
	}
}

// Done is called by the worker pool when a batch finishes. It
// decrements R, wakes anyone waiting on the idle condition, and re-runs
// the dispatch policy for whatever arrived meanwhile.
func (d *Dispatcher) Done() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running--
	d.cond.Broadcast()
	d.dispatchLocked(false)
}

// Fail moves e to the failed graveyard. Items there are not retried
// automatically; they remain for inspection.
func (d *Dispatcher) Fail(e Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, e)
	d.mx.TaskFailed()
}

// Failed returns a snapshot of the failed graveyard.
func (d *Dispatcher) Failed() []Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Task, len(d.failed))
	copy(out, d.failed)
	return out
}

// Pending returns the number of tasks currently queued (not yet part of
// a dispatched batch).
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Drain blocks until R == 0 and pending is empty, forcing dispatch each
// cycle. Used by Shutdown(wait=true), Delete, and Clear.
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.running > 0 || len(d.pending) > 0 {
		if len(d.pending) > 0 {
			d.dispatchLocked(true)
		}
		d.cond.Wait()
	}
}
