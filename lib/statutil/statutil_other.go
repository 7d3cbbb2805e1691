// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !linux

package statutil

import "os"

// Platforms other than Linux don't expose a portable ctime through
// os.FileInfo.Sys(); fall back to mtime alone.
func minMTime(fi os.FileInfo) uint64 {
	return uint64(fi.ModTime().Unix())
}
