//go:build linux || darwin

package utils

import (
	"syscall"
)

// FreeSpace returns the number of bytes available to the current user on the
// filesystem holding path.
func FreeSpace(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
