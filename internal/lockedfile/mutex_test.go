//go:build unix

package lockedfile

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMutexExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmp", ".lock")

	unlock, err := MutexAt(path).Lock()
	if err != nil {
		t.Fatalf("first Lock failed: %v", err)
	}

	// flock locks belong to the open file description, so a second open
	// in the same process conflicts too.
	if _, err := MutexAt(path).Lock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Lock err = %v, want ErrLocked", err)
	}

	unlock()
	unlock2, err := MutexAt(path).Lock()
	if err != nil {
		t.Fatalf("Lock after unlock failed: %v", err)
	}
	unlock2()
}
