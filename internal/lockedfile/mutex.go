// Package lockedfile provides an inter-process mutex backed by a lock file.
package lockedfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// A Mutex provides mutual exclusion within and across processes by
// locking a well-known file.
type Mutex struct {
	path string
}

// MutexAt returns a new Mutex with file as the underlying file.
// The file is created on first lock.
func MutexAt(path string) *Mutex {
	if path == "" {
		panic("lockedfile.MutexAt: empty path")
	}
	return &Mutex{path: path}
}

func (mu *Mutex) String() string {
	return fmt.Sprintf("lockedfile.Mutex(%s)", mu.path)
}

// Lock attempts to lock the Mutex without blocking. If another process
// holds it, Lock fails with ErrLocked. On success the returned unlock
// function releases the lock.
func (mu *Mutex) Lock() (unlock func(), err error) {
	if err := os.MkdirAll(filepath.Dir(mu.path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(mu.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", mu.path, err)
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}
