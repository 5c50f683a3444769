// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// inotify exhaustion: max_user_watches (ENOSPC), process and system
// descriptor limits (EMFILE, ENFILE).
var fatalErrnos = []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}
