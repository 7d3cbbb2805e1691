// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build linux

package statutil

import (
	"os"
	"syscall"
)

func minMTime(fi os.FileInfo) uint64 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return uint64(fi.ModTime().Unix())
	}
	mtime := int64(st.Mtim.Sec)
	ctime := int64(st.Ctim.Sec)
	if ctime < mtime {
		return uint64(ctime)
	}
	return uint64(mtime)
}
