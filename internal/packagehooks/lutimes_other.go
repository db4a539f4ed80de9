//go:build !linux

package packagehooks

import (
	"os"
	"time"
)

// lutimes falls back to following symlinks on platforms without
// AT_SYMLINK_NOFOLLOW support through golang.org/x/sys/unix; reproducible
// packaging is a Linux-build concern.
func lutimes(path string, when time.Time) error {
	return os.Chtimes(path, when, when)
}
