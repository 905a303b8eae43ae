//go:build windows

package file

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// acquireSweepLock takes an exclusive, non-blocking LockFileEx lock on path.
func acquireSweepLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	var overlapped windows.Overlapped
	err = windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		1,
		0,
		&overlapped,
	)
	if err != nil {
		f.Close()
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return nil, errWouldBlock
		}
		return nil, fmt.Errorf("LockFileEx failed: %w", err)
	}
	return f, nil
}

// releaseSweepLock releases the lock and closes the handle.
func releaseSweepLock(f *os.File) error {
	if f == nil {
		return nil
	}
	var overlapped windows.Overlapped
	err1 := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, &overlapped)
	err2 := f.Close()
	return errors.Join(err1, err2)
}
