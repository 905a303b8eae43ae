//go:build !windows

package file

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// acquireSweepLock takes an exclusive, non-blocking flock on path.
func acquireSweepLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errWouldBlock
		}
		return nil, fmt.Errorf("failed to acquire file lock: %w", err)
	}
	return f, nil
}

// releaseSweepLock drops the flock. The lock file stays in place so that no
// process ever locks an unlinked inode.
func releaseSweepLock(f *os.File) error {
	if f == nil {
		return nil
	}
	err1 := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	err2 := f.Close()
	return errors.Join(err1, err2)
}
