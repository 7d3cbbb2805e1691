// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package events implements the handler registry: a map from single
// event code to an ordered list of (callback, user-data) pairs, whose
// Dispatch both notifies user callbacks and applies the resulting cache
// mutation. Adapted from the role the teacher's own lib/events package
// plays (a central typed pub-sub point other packages subscribe to),
// narrowed here to the six-bit vocabulary of §6.3.
package events

import (
	"reflect"
	"sync"

	"github.com/nshi/falcon/lib/cache"
	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/logger"
	"github.com/nshi/falcon/lib/metrics"
)

// Code is a bitmask of event codes. A single Dispatch call always
// carries exactly one bit; masks are only meaningful for registration.
type Code uint

const (
	None        Code = 0
	DirCreated  Code = 1 << 0
	DirDeleted  Code = 1 << 1
	DirChanged  Code = 1 << 2
	FileCreated Code = 1 << 3
	FileDeleted Code = 1 << 4
	FileChanged Code = 1 << 5

	DirAll  = DirCreated | DirDeleted | DirChanged
	FileAll = FileCreated | FileDeleted | FileChanged
	All     = DirAll | FileAll
)

var bits = []Code{DirCreated, DirDeleted, DirChanged, FileCreated, FileDeleted, FileChanged}

func (c Code) String() string {
	switch c {
	case DirCreated:
		return "DIR_CREATED"
	case DirDeleted:
		return "DIR_DELETED"
	case DirChanged:
		return "DIR_CHANGED"
	case FileCreated:
		return "FILE_CREATED"
	case FileDeleted:
		return "FILE_DELETED"
	case FileChanged:
		return "FILE_CHANGED"
	default:
		return "NONE"
	}
}

// Callback is a user handler. Returning false unregisters it.
type Callback func(e entry.Entry, code Code, userData any) bool

type registration struct {
	cb       Callback
	userData any
}

// Registry is the event-mask keyed handler list, plus the cache
// mutation Dispatch applies after user callbacks run.
type Registry struct {
	mu    sync.Mutex
	lists map[Code][]*registration
	cache *cache.Cache
	mx    *metrics.Collector
	log   *logger.Logger
}

// New returns a registry that mutates c as events are dispatched.
// m may be nil.
func New(c *cache.Cache, m *metrics.Collector) *Registry {
	return &Registry{
		lists: make(map[Code][]*registration),
		cache: c,
		mx:    m,
		log:   logger.New("events"),
	}
}

// Register appends (cb, userData) to every bit set in mask.
func (r *Registry) Register(mask Code, cb Callback, userData any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bit := range bits {
		if mask&bit != 0 {
			r.lists[bit] = append(r.lists[bit], &registration{cb: cb, userData: userData})
		}
	}
}

// Unregister removes the first matching callback (ignoring userData)
// from every bit set in mask.
func (r *Registry) Unregister(mask Code, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := reflect.ValueOf(cb).Pointer()
	for _, bit := range bits {
		if mask&bit == 0 {
			continue
		}
		list := r.lists[bit]
		for i, reg := range list {
			if reflect.ValueOf(reg.cb).Pointer() == target {
				r.lists[bit] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// Dispatch invokes every callback registered for code, in registration
// order, while holding the registry mutex, then applies the event's
// cache mutation. code must be a single bit, not a mask.
func (r *Registry) Dispatch(e entry.Entry, code Code) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.lists[code]
	kept := list[:0:0]
	for _, reg := range list {
		if reg.cb(e, code, reg.userData) {
			kept = append(kept, reg)
		}
	}
	r.lists[code] = kept

	switch code {
	case DirCreated, DirChanged, FileCreated, FileChanged:
		r.cache.Add(e)
	case DirDeleted, FileDeleted:
		if err := r.cache.Delete(e.Name); err != nil {
			r.log.Warnln("dispatch: delete of already-absent entry", e.Name, err)
		}
	}
	if r.mx != nil {
		r.mx.EventDispatched(code.String())
	}
}
