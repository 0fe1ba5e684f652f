package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// mockVCS fakes a repository whose tree at ref holds main.c containing ref.
type mockVCS struct {
	clones    int
	checkouts []string
	cloneErr  error
	known     map[string]bool
}

func (m *mockVCS) Clone(ctx context.Context, remote, dir string) error {
	m.clones++
	if m.cloneErr != nil {
		return m.cloneErr
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0644)
}

func (m *mockVCS) Checkout(ctx context.Context, dir, ref string) error {
	if m.known != nil && !m.known[ref] {
		return fmt.Errorf("checkout %s: pathspec did not match", ref)
	}
	m.checkouts = append(m.checkouts, ref)
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "main.c"), []byte(ref), 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "src", "util.c"), []byte(ref), 0644)
}

func (m *mockVCS) Tags(ctx context.Context, remote string) ([]string, error) { return nil, nil }
