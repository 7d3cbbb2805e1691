// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package cache holds the in-memory trie of entry records that
// represents the last-known filesystem state, plus its coarse mutex and
// a live count of carrying nodes.
package cache

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/ferr"
	"github.com/nshi/falcon/lib/persist"
	"github.com/nshi/falcon/lib/trie"
)

// Cache is a thread-safe trie of entry records.
type Cache struct {
	mu    sync.Mutex
	t     *trie.Trie[entry.Entry]
	count int

	// index is a lock-free secondary name index, giving Get/Has an O(1)
	// path that neither walks the trie nor takes mu. It is kept in sync
	// with every mutation under mu; reads never block on mu.
	index *xsync.MapOf[string, entry.Entry]

	sep string
}

// New returns an empty cache keyed by the given path separator.
func New(sep string) *Cache {
	return &Cache{
		t:     trie.New[entry.Entry](sep),
		index: xsync.NewMapOf[string, entry.Entry](),
		sep:   sep,
	}
}

// Get returns a copy of the record at name, if any. The copy is safe to
// read without further synchronisation.
func (c *Cache) Get(name string) (entry.Entry, bool) {
	return c.index.Load(name)
}

// Has reports whether name is present.
func (c *Cache) Has(name string) bool {
	_, ok := c.index.Load(name)
	return ok
}

// Add inserts a copy of e, replacing any existing record at e.Name.
func (c *Cache) Add(e entry.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := c.t.Find(e.Name)
	existed := node != nil && node.Payload() != nil
	c.t.Add(e.Name, &e)
	if !existed {
		c.count++
	}
	c.index.Store(e.Name, e)
}

// Delete removes the record at name. Descendants are retained: deleting
// a directory's own record does not cascade to its children.
func (c *Cache) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := c.t.Find(name)
	if node == nil || node.Payload() == nil {
		return ferr.New(ferr.NotFound, "cache.Delete", nil)
	}
	node.SetPayload(nil)
	c.count--
	c.index.Delete(name)
	return nil
}

// DeleteSubtree removes name and every descendant record from the
// cache, unlike Delete which retains descendants. Used by the engine
// facade's Delete, which is explicitly cascading.
func (c *Cache) DeleteSubtree(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []string
	ok := c.t.Delete(name, func(e *entry.Entry) {
		removed = append(removed, e.Name)
		c.count--
	})
	if !ok {
		return ferr.New(ferr.NotFound, "cache.DeleteSubtree", nil)
	}
	for _, n := range removed {
		c.index.Delete(n)
	}
	return nil
}

// SetWatch flips the watch flag of the cached entry at name and
// returns the updated entry. Fails with NotFound if name is unknown.
func (c *Cache) SetWatch(name string, watch bool) (entry.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := c.t.Find(name)
	if node == nil || node.Payload() == nil {
		return entry.Entry{}, ferr.New(ferr.NotFound, "cache.SetWatch", nil)
	}
	p := node.Payload()
	p.Watch = watch
	c.index.Store(name, *p)
	return *p, nil
}

// Clear drops every record and resets the count.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = trie.New[entry.Entry](c.sep)
	c.count = 0
	c.index.Clear()
}

// Len returns the number of live (payload-bearing) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// ForEachTop visits every top-level record: for each root child, either
// the child's own payload, or, if the child is a pure prefix node, the
// payloads of its descendants that are shallowest.
func (c *Cache) ForEachTop(visit func(entry.Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for child := c.t.Root().Child(); child != nil; child = child.Next() {
		visitShallowest(child, visit)
	}
}

func visitShallowest(n *trie.Node[entry.Entry], visit func(entry.Entry)) {
	if p := n.Payload(); p != nil {
		visit(*p)
		return
	}
	for child := n.Child(); child != nil; child = child.Next() {
		visitShallowest(child, visit)
	}
}

// ForEachChild visits the entry at name (if any) and every descendant
// that carries a payload, regardless of depth.
func (c *Cache) ForEachChild(name string, visit func(entry.Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := c.t.Find(name)
	if node == nil {
		return
	}
	visitAll(node, visit)
}

func visitAll(n *trie.Node[entry.Entry], visit func(entry.Entry)) {
	if p := n.Payload(); p != nil {
		visit(*p)
	}
	for child := n.Child(); child != nil; child = child.Next() {
		visitAll(child, visit)
	}
}

// Save round-trips the cache to path using format.
func (c *Cache) Save(path string, format persist.Format) error {
	c.mu.Lock()
	entries := make([]entry.Entry, 0, c.count)
	c.t.ForEach(func(n *trie.Node[entry.Entry]) {
		entries = append(entries, *n.Payload())
	})
	c.mu.Unlock()

	return persist.Save(path, format, entries)
}

// Load replaces the cache's contents with what's stored at path.
func (c *Cache) Load(path string, format persist.Format) error {
	entries, err := persist.Load(path, format)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = trie.New[entry.Entry](c.sep)
	c.count = 0
	c.index.Clear()
	for _, e := range entries {
		e := e
		c.t.Add(e.Name, &e)
		c.count++
		c.index.Store(e.Name, e)
	}
	return nil
}
