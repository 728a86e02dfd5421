//go:build windows

package workbook

import (
	"os"

	"golang.org/x/sys/windows"
)

// Probe reports whether another process holds the file. Spreadsheet programs
// on Windows keep the workbook open with an exclusive share mode, so a failed
// non-blocking LockFileEx attempt means the file is in use.
func Probe(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		return true
	}
	defer f.Close()

	handle := windows.Handle(f.Fd())
	var overlapped windows.Overlapped
	err = windows.LockFileEx(
		handle,
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0,
		&overlapped,
	)
	if err != nil {
		return true
	}
	windows.UnlockFileEx(handle, 0, 1, 0, &overlapped)
	return false
}
