//go:build !windows

package workbook

import (
	"os"

	"golang.org/x/sys/unix"
)

// Probe reports whether another process holds the file via an advisory,
// non-blocking exclusive-lock attempt. A missing file is never locked.
func Probe(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		return true
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return true
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false
}
