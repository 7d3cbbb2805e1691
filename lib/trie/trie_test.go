// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFindRoundTrip(t *testing.T) {
	tr := New[string]("/")
	v := "payload"
	n := tr.Add("/tmp/x", &v)
	require.NotNil(t, n)

	found := tr.Find("/tmp/x")
	require.NotNil(t, found)
	assert.Equal(t, &v, found.Payload())
	assert.Same(t, n, found)
}

func TestAddReplacesExistingPayload(t *testing.T) {
	tr := New[string]("/")
	a, b := "a", "b"
	tr.Add("/tmp/x", &a)
	tr.Add("/tmp/x", &b)

	found := tr.Find("/tmp/x")
	require.NotNil(t, found)
	assert.Equal(t, &b, found.Payload())
}

func TestFindMissing(t *testing.T) {
	tr := New[string]("/")
	assert.Nil(t, tr.Find("/nope"))
}

func TestEmptyKeyRejected(t *testing.T) {
	tr := New[string]("/")
	v := "x"
	assert.Nil(t, tr.Add("", &v))
}

func TestSoleSeparatorsCollapseExceptRoot(t *testing.T) {
	tr := New[string]("/")
	v := "root"
	n := tr.Add("/", &v)
	require.NotNil(t, n)
	assert.Equal(t, "/", n.Key())
	assert.Same(t, tr.Root(), n.Parent())

	// A run of separators beyond the single root one is a no-op.
	assert.Nil(t, tr.Add("//", &v))
	assert.Nil(t, tr.Add("///", &v))
}

func TestConsecutiveAndTrailingSeparatorsCollapse(t *testing.T) {
	tr := New[string]("/")
	v := "x"
	n1 := tr.Add("tmp//x/", &v)
	n2 := tr.Add("tmp/x", &v)
	assert.Same(t, n1, n2)
}

func TestDeterministicLookup(t *testing.T) {
	tr := New[string]("/")
	v := "x"
	added := tr.Add("/a/b/c", &v)
	found := tr.Find("/a/b/c")
	assert.Same(t, added, found)
}

func TestDeleteUnlinksSubtreeAndDestroys(t *testing.T) {
	tr := New[string]("/")
	va, vb := "a", "b"
	tr.Add("/dir", &va)
	tr.Add("/dir/child", &vb)

	var destroyed []string
	ok := tr.Delete("/dir", func(p *string) { destroyed = append(destroyed, *p) })
	require.True(t, ok)
	assert.Nil(t, tr.Find("/dir"))
	assert.Nil(t, tr.Find("/dir/child"))
	assert.ElementsMatch(t, []string{"a", "b"}, destroyed)
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	tr := New[string]("/")
	assert.False(t, tr.Delete("/nope", nil))
}

func TestDeleteRepairsSiblingLinks(t *testing.T) {
	tr := New[string]("/")
	va, vb, vc := "a", "b", "c"
	tr.Add("/dir/a", &va)
	tr.Add("/dir/b", &vb)
	tr.Add("/dir/c", &vc)

	tr.Delete("/dir/b", nil)

	dir := tr.Find("/dir")
	require.NotNil(t, dir)
	var names []string
	for c := dir.Child(); c != nil; c = c.Next() {
		names = append(names, c.Key())
	}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestForEachVisitsPostOrderPayloadOnly(t *testing.T) {
	tr := New[string]("/")
	va, vb := "a", "b"
	tr.Add("/dir", &va)
	tr.Add("/dir/child", &vb)
	tr.Add("/dir/empty", nil) // pure prefix node, no payload

	var visited []string
	tr.ForEach(func(n *Node[string]) { visited = append(visited, n.Key()) })

	assert.ElementsMatch(t, []string{"child", "dir"}, visited)
	// child must come before dir (post-order: children before parent)
	childIdx, dirIdx := -1, -1
	for i, k := range visited {
		if k == "child" {
			childIdx = i
		}
		if k == "dir" {
			dirIdx = i
		}
	}
	assert.Less(t, childIdx, dirIdx)
}
