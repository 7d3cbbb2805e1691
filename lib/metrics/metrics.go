// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics exposes the engine's Prometheus instrumentation: tasks
// enqueued, batches dispatched, events emitted per code, and watcher
// registrations. A *Collector is optional everywhere it's threaded
// through — nil-safe, so embedding callers that don't run an HTTP
// exporter pay nothing beyond a nil check.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the engine's metric instruments. The zero value is
// not usable; construct with New.
type Collector struct {
	tasksEnqueued      prometheus.Counter
	tasksFailed        prometheus.Counter
	batchesDispatched  prometheus.Counter
	eventsByCode       *prometheus.CounterVec
	watchedDirectories prometheus.Gauge
}

// New creates and registers the engine's metrics on reg. reg may be a
// fresh prometheus.NewRegistry() or prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tasksEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falcon",
			Name:      "tasks_enqueued_total",
			Help:      "Total tasks enqueued onto the pending queue.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falcon",
			Name:      "tasks_failed_total",
			Help:      "Total tasks routed to the failed graveyard.",
		}),
		batchesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "falcon",
			Name:      "batches_dispatched_total",
			Help:      "Total batches submitted to the worker pool.",
		}),
		eventsByCode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falcon",
			Name:      "events_total",
			Help:      "Total events dispatched, by event code.",
		}, []string{"code"}),
		watchedDirectories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "watched_directories",
			Help:      "Directories currently registered with the OS watcher.",
		}),
	}
	reg.MustRegister(c.tasksEnqueued, c.tasksFailed, c.batchesDispatched, c.eventsByCode, c.watchedDirectories)
	return c
}

// TaskEnqueued records one task landing on the pending queue.
func (c *Collector) TaskEnqueued() {
	if c == nil {
		return
	}
	c.tasksEnqueued.Inc()
}

// TaskFailed records one task routed to the failed graveyard.
func (c *Collector) TaskFailed() {
	if c == nil {
		return
	}
	c.tasksFailed.Inc()
}

// BatchDispatched records one batch handed to the worker pool.
func (c *Collector) BatchDispatched() {
	if c == nil {
		return
	}
	c.batchesDispatched.Inc()
}

// EventDispatched records one event of the given code.
func (c *Collector) EventDispatched(code string) {
	if c == nil {
		return
	}
	c.eventsByCode.WithLabelValues(code).Inc()
}

// SetWatchedDirectories sets the current watched-directory gauge.
func (c *Collector) SetWatchedDirectories(n int) {
	if c == nil {
		return
	}
	c.watchedDirectories.Set(float64(n))
}
