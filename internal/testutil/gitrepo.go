// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Snapshot is the full content of one tagged commit: relative path to
// file content. Files absent from a later snapshot are deleted.
type Snapshot struct {
	Tag   string
	Files map[string]string
}

// RequireGit skips the test when git is not installed.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

// NewGitRepo creates a repository under t.TempDir() with one commit per
// snapshot, each tagged with its Tag, and returns the repository path.
func NewGitRepo(t *testing.T, snapshots ...Snapshot) string {
	t.Helper()
	RequireGit(t)

	dir := filepath.Join(t.TempDir(), "origin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	Git(t, dir, "init", "--quiet")
	Git(t, dir, "config", "user.email", "test@example.com")
	Git(t, dir, "config", "user.name", "test")
	Git(t, dir, "config", "commit.gpgsign", "false")

	var prev map[string]string
	for _, snap := range snapshots {
		for name := range prev {
			if _, ok := snap.Files[name]; !ok {
				os.Remove(filepath.Join(dir, name))
			}
		}
		names := make([]string, 0, len(snap.Files))
		for name := range snap.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			WriteFile(t, filepath.Join(dir, name), snap.Files[name])
		}
		Git(t, dir, "add", "--all")
		Git(t, dir, "commit", "--quiet", "--allow-empty", "-m", snap.Tag)
		Git(t, dir, "tag", snap.Tag)
		prev = snap.Files
	}
	return dir
}

// Git runs git in dir and returns its trimmed stdout.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
