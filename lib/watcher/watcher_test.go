// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshi/falcon/lib/entry"
)

func newTestWatcher(t *testing.T, enqueue func(string)) *Watcher {
	t.Helper()
	w, err := New(enqueue, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestAddIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, func(string) {})

	e := entry.Entry{Name: dir, Mode: os.ModeDir}
	assert.True(t, w.Add(e))
	assert.False(t, w.Add(e), "second Add for the same directory must report false")
	assert.True(t, w.IsWatched(dir))
}

func TestAddRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w := newTestWatcher(t, func(string) {})
	assert.False(t, w.Add(entry.Entry{Name: path, Mode: 0o644}))
}

func TestDeleteReportsWhetherSomethingWasRemoved(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, func(string) {})

	e := entry.Entry{Name: dir, Mode: os.ModeDir}
	w.Add(e)

	assert.True(t, w.Delete(e))
	assert.False(t, w.Delete(e))
	assert.False(t, w.IsWatched(dir))
}

func TestClearRemovesEverything(t *testing.T) {
	d1, d2 := t.TempDir(), t.TempDir()
	w := newTestWatcher(t, func(string) {})

	w.Add(entry.Entry{Name: d1, Mode: os.ModeDir})
	w.Add(entry.Entry{Name: d2, Mode: os.ModeDir})

	w.Clear()

	assert.False(t, w.IsWatched(d1))
	assert.False(t, w.IsWatched(d2))
}

func TestNotificationEnqueuesChangedPath(t *testing.T) {
	dir := t.TempDir()
	notified := make(chan string, 10)
	w := newTestWatcher(t, func(path string) { notified <- path })

	require.True(t, w.Add(entry.Entry{Name: dir, Mode: os.ModeDir}))

	target := filepath.Join(dir, "new-file")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))

	select {
	case got := <-notified:
		assert.Equal(t, filepath.Clean(target), got)
	case <-time.After(3 * time.Second):
		t.Fatal("no notification received for new file")
	}
}
