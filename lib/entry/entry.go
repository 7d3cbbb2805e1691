// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package entry defines the Entry record: a metadata snapshot of one
// observed filesystem entry, and the identity/diff semantics over it.
package entry

import "os"

// Entry is a metadata snapshot of one filesystem entry.
type Entry struct {
	// Name is the canonicalized path: no trailing separator, except for
	// the filesystem root itself.
	Name string
	// Mode encodes the POSIX file type and permission bits. Equal
	// compares it in full, so a permission change alone makes two
	// observations differ.
	Mode os.FileMode
	// Size is the file size in bytes; 0 for directories.
	Size uint64
	// MTime is min(stat.mtime, stat.ctime) in seconds since the epoch.
	// ctime is normally the later of the two, so this is usually mtime;
	// a ctime bump alone does not change it.
	MTime uint64
	// Watch is meaningful only for directories, and is excluded from
	// diff equality: an entry keeps its Watch flag across reobservation.
	Watch bool
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Mode.IsDir() }

// IsRegular reports whether the entry is a regular file.
func (e Entry) IsRegular() bool { return e.Mode.IsRegular() }

// Equal implements the diff equality of §3: identical name, mode, size,
// and mtime. Watch is intentionally excluded.
func (e Entry) Equal(o Entry) bool {
	return e.Name == o.Name && e.Mode == o.Mode && e.Size == o.Size && e.MTime == o.MTime
}
