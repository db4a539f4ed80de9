//go:build linux

package packagehooks

import (
	"time"

	"golang.org/x/sys/unix"
)

// lutimes sets atime and mtime on path to when without following a
// trailing symlink.
func lutimes(path string, when time.Time) error {
	ts := unix.NsecToTimespec(when.UnixNano())
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, []unix.Timespec{ts, ts}, unix.AT_SYMLINK_NOFOLLOW)
}
