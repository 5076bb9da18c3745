//go:build unix

package scanner

import (
	"os"
	"syscall"
)

// inodeOf extracts the inode number, or 0 when the platform does not
// expose one. Inode 0 disables the once-per-inode guarantee for that
// file, which is the best a portless stat can do.
func inodeOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
