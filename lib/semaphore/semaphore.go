// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package semaphore adapts the teacher's byte-semaphore (Take/Give/
// SetCapacity over an available count) to bound concurrent directory
// descent across the worker pool, independent of MAX_WORKERS. original
// falcon's walker.c caps concurrent directory streams per process; here
// that's a semaphore sized in "directory slots" rather than bytes.
package semaphore

import "sync"

// Semaphore bounds concurrent access to a resource of fixed capacity.
type Semaphore struct {
	mu        sync.Mutex
	cond      *sync.Cond
	capacity  int64
	available int64
}

// New returns a semaphore with the given capacity. A zero-capacity
// semaphore is a no-op: Take and Give never block.
func New(capacity int64) *Semaphore {
	s := &Semaphore{capacity: capacity, available: capacity}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Take blocks until n units are available, then reserves them. A
// request larger than the capacity is reduced to the capacity. A
// zero-capacity semaphore never blocks.
func (s *Semaphore) Take(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity == 0 {
		return
	}
	if n > s.capacity {
		n = s.capacity
	}
	for s.available < n {
		s.cond.Wait()
		if n > s.capacity {
			n = s.capacity
		}
	}
	s.available -= n
}

// Give releases n units back to the semaphore, never exceeding capacity.
func (s *Semaphore) Give(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity == 0 {
		return
	}
	s.available += n
	if s.available > s.capacity {
		s.available = s.capacity
	}
	s.cond.Broadcast()
}

// SetCapacity adjusts capacity, shifting available by the same delta
// (clamped to [0, new capacity]), and wakes any blocked takers.
func (s *Semaphore) SetCapacity(capacity int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := capacity - s.capacity
	s.capacity = capacity
	s.available += delta
	if s.available > s.capacity {
		s.available = s.capacity
	}
	if s.available < 0 {
		s.available = 0
	}
	s.cond.Broadcast()
}

// Available returns the current available unit count, for tests.
func (s *Semaphore) Available() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}
