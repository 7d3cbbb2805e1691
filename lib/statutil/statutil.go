// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package statutil computes the engine's mtime observation: the older
// of a file's modification and inode-change times. Since ctime is
// normally the later of the two, the result is usually mtime, and a
// ctime bump alone leaves it unchanged.
package statutil

import "os"

// MinMTime returns min(stat.mtime, stat.ctime) in seconds since the
// epoch, per §3. On platforms without a ctime concept, it falls back to
// ModTime alone.
func MinMTime(fi os.FileInfo) uint64 {
	return minMTime(fi)
}
