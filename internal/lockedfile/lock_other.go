//go:build !unix

package lockedfile

import (
	"errors"
	"os"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("locked by another process")

// No advisory locking outside unix; the staging root is assumed private.
func lockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) error { return nil }
