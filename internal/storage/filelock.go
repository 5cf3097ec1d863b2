package storage

import (
	"fmt"
	"os"
	"syscall"
)

// lockDir acquires an exclusive advisory lock (LOCK_EX) on a directory and
// returns the function that releases it. Exports promoted into the same
// parent directory are serialized this way without leaving a lock file
// beside them.
func lockDir(path string) (unlock func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s for locking: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring lock on %s: %w", path, err)
	}

	return func() error {
		defer f.Close()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
