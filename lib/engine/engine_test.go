// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package engine_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshi/falcon/lib/engine"
	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/events"
	"github.com/nshi/falcon/lib/persist"
)

type seen struct {
	code events.Code
	name string
}

func recorder(notify chan seen) events.Callback {
	return func(e entry.Entry, code events.Code, _ any) bool {
		notify <- seen{code: code, name: e.Name}
		return true
	}
}

func waitFor(t *testing.T, ch chan seen, code events.Code, name string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case s := <-ch:
			if s.code == code && s.name == name {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s on %s", code, name)
		}
	}
}

func drain(ch chan seen, d time.Duration) []seen {
	var out []seen
	deadline := time.After(d)
	for {
		select {
		case s := <-ch:
			out = append(out, s)
		case <-deadline:
			return out
		}
	}
}

func TestAddDetectsDirectoryAndChildren(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	e := engine.New()
	notify := make(chan seen, 64)
	require.NoError(t, e.Init(engine.Options{BatchSize: 1}))
	t.Cleanup(func() { _ = e.Shutdown("", false) })
	e.Handlers().Register(events.All, recorder(notify), nil)

	require.NoError(t, e.Add(dir, true))

	waitFor(t, notify, events.DirCreated, dir, 5*time.Second)
	waitFor(t, notify, events.FileCreated, file, 5*time.Second)
	assert.True(t, e.Has(dir))
	assert.True(t, e.Has(file))
}

func TestLiveWatcherNotifiesFileChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	e := engine.New()
	notify := make(chan seen, 64)
	require.NoError(t, e.Init(engine.Options{BatchSize: 1}))
	t.Cleanup(func() { _ = e.Shutdown("", false) })
	e.Handlers().Register(events.All, recorder(notify), nil)

	require.NoError(t, e.Add(dir, true))
	waitFor(t, notify, events.DirCreated, dir, 5*time.Second)
	waitFor(t, notify, events.FileCreated, file, 5*time.Second)

	time.Sleep(1100 * time.Millisecond) // ensure mtime advances past 1s resolution
	require.NoError(t, os.WriteFile(file, []byte("v2, longer than v1"), 0o644))

	waitFor(t, notify, events.FileChanged, file, 5*time.Second)
}

func TestFilterSuppressesMatchingEntries(t *testing.T) {
	dir := t.TempDir()
	suppressed := filepath.Join(dir, "ignore.tmp")
	kept := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(suppressed, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(kept, []byte("y"), 0o644))

	e := engine.New()
	notify := make(chan seen, 64)
	require.NoError(t, e.Init(engine.Options{BatchSize: 1}))
	t.Cleanup(func() { _ = e.Shutdown("", false) })
	require.NoError(t, e.Filters().Register(false, `\.tmp$`, nil))
	e.Handlers().Register(events.All, recorder(notify), nil)

	require.NoError(t, e.Add(dir, false))
	waitFor(t, notify, events.FileCreated, kept, 5*time.Second)

	for _, s := range drain(notify, 300*time.Millisecond) {
		assert.NotEqual(t, suppressed, s.name, "filtered entry must not be dispatched")
	}
	assert.False(t, e.Has(suppressed))
}

func TestStatFailureDoesNotDeleteCachedEntry(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	e := engine.New()
	notify := make(chan seen, 64)
	require.NoError(t, e.Init(engine.Options{BatchSize: 1}))
	t.Cleanup(func() { _ = e.Shutdown("", false) })
	e.Handlers().Register(events.All, recorder(notify), nil)

	require.NoError(t, e.Add(dir, true))
	waitFor(t, notify, events.FileCreated, file, 5*time.Second)

	require.NoError(t, os.Remove(file))

	// The live watcher enqueues a re-check for the removed path; a stat
	// failure there must never synthesize a delete on its own, per the
	// boundary at spec.md's worker property: "stat failure does not
	// remove a cached entry; a subsequent non-existence detection does."
	for _, s := range drain(notify, 1*time.Second) {
		assert.NotEqual(t, file, s.name, "a stat failure must not be reported as an event at all")
	}
	assert.True(t, e.Has(file), "cached entry must survive a stat failure")
}

func TestDeleteRemovesEntryAndDescendants(t *testing.T) {
	dir := t.TempDir()
	child := filepath.Join(dir, "child.txt")
	require.NoError(t, os.WriteFile(child, []byte("z"), 0o644))

	e := engine.New()
	notify := make(chan seen, 64)
	require.NoError(t, e.Init(engine.Options{BatchSize: 1}))
	t.Cleanup(func() { _ = e.Shutdown("", false) })
	e.Handlers().Register(events.All, recorder(notify), nil)

	require.NoError(t, e.Add(dir, true))
	waitFor(t, notify, events.FileCreated, child, 5*time.Second)

	require.NoError(t, e.Delete(dir))
	assert.False(t, e.Has(dir))
	assert.False(t, e.Has(child))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "persisted.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cachePath := filepath.Join(t.TempDir(), "falcon.cache")

	e := engine.New()
	notify := make(chan seen, 64)
	require.NoError(t, e.Init(engine.Options{BatchSize: 1}))
	e.Handlers().Register(events.All, recorder(notify), nil)
	require.NoError(t, e.Add(dir, true))
	waitFor(t, notify, events.FileCreated, file, 5*time.Second)

	require.NoError(t, e.Shutdown(cachePath, true))

	e2 := engine.New()
	notify2 := make(chan seen, 64)
	require.NoError(t, e2.Init(engine.Options{CachePath: cachePath, CacheFormat: persist.FormatText, BatchSize: 1}))
	t.Cleanup(func() { _ = e2.Shutdown("", false) })
	e2.Handlers().Register(events.All, recorder(notify2), nil)

	// The loaded state already matches the on-disk file: re-observation
	// must not re-synthesize a Created event.
	for _, s := range drain(notify2, 500*time.Millisecond) {
		assert.NotEqual(t, events.FileCreated, s.code, "reload of unchanged state must not re-create")
	}
	assert.True(t, e2.Has(file))
}
