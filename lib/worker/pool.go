// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package worker implements the bounded worker pool that runs the
// walk-and-diff routine over dispatched batches. Workers are supervised
// suture.Services, restarted automatically if one ever panics, rather
// than silently dying and starving the pool.
package worker

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/nshi/falcon/lib/logger"
	"github.com/nshi/falcon/lib/queue"
	"github.com/nshi/falcon/lib/semaphore"
)

// DefaultMaxWorkers is MAX_WORKERS from §4.5.
const DefaultMaxWorkers = 3

// DefaultDirSlots bounds concurrent directory descent across the whole
// pool, independent of worker count (see SPEC_FULL's walker.c note).
const DefaultDirSlots = 4

var log = logger.New("worker")

// Pool runs process over every task in every batch handed to it via
// Submit, up to maxWorkers concurrently.
type Pool struct {
	sup       *suture.Supervisor
	batches   chan []queue.Task
	process   func(ctx context.Context, t queue.Task, dirSlots *semaphore.Semaphore)
	onDone    func()
	dirSlots  *semaphore.Semaphore
	maxWorker int
}

// New returns a pool of maxWorkers goroutines, each draining batches
// and calling process for every task, then onBatchDone once the batch
// is fully processed.
func New(maxWorkers, dirSlots int, process func(ctx context.Context, t queue.Task, sem *semaphore.Semaphore), onBatchDone func()) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if dirSlots <= 0 {
		dirSlots = DefaultDirSlots
	}
	return &Pool{
		sup:       suture.NewSimple("falcon-worker-pool"),
		batches:   make(chan []queue.Task, maxWorkers),
		process:   process,
		onDone:    onBatchDone,
		dirSlots:  semaphore.New(int64(dirSlots)),
		maxWorker: maxWorkers,
	}
}

// Start launches the pool's workers under ctx. It returns once all
// workers have been registered with the supervisor; it does not block.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorker; i++ {
		p.sup.Add(workerService{p: p})
	}
	go p.sup.Serve(ctx)
}

// Submit hands a batch to the pool. Safe to call concurrently; blocks
// only if every worker is already busy and the internal channel is full.
func (p *Pool) Submit(batch []queue.Task) {
	p.batches <- batch
}

// Stop closes the batch channel; in-flight batches are allowed to
// finish, but no more are accepted.
func (p *Pool) Stop() {
	close(p.batches)
}

type workerService struct {
	p *Pool
}

func (w workerService) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.p.batches:
			if !ok {
				return nil
			}
			for _, t := range batch {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Warnln("worker: task panicked, continuing batch:", r)
						}
					}()
					w.p.process(ctx, t, w.p.dirSlots)
				}()
			}
			if w.p.onDone != nil {
				w.p.onDone()
			}
		}
	}
}

func (w workerService) String() string { return "falcon-worker" }
