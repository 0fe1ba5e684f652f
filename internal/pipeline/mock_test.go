package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gydrogen/hydrogit/internal/comparator"
	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/gydrogen/hydrogit/pkgs/buildsys"
)

// mockVCS serves a one-target C project per ref. Refs missing from known
// fail to check out.
type mockVCS struct {
	cloneErr  error
	known     map[string]bool
	clones    int
	checkouts map[string]int
}

func (m *mockVCS) Clone(ctx context.Context, remote, dir string) error {
	m.clones++
	if m.cloneErr != nil {
		return m.cloneErr
	}
	return os.MkdirAll(filepath.Join(dir, ".git"), 0755)
}

func (m *mockVCS) Checkout(ctx context.Context, dir, ref string) error {
	if m.known != nil && !m.known[ref] {
		return fmt.Errorf("error: pathspec '%s' did not match", ref)
	}
	if m.checkouts == nil {
		m.checkouts = make(map[string]int)
	}
	m.checkouts[ref]++
	files := map[string]string{
		"CMakeLists.txt": "project(prog C)\nadd_executable(prog main.c)\n",
		"main.c":         "/* " + ref + " */\nint main(void) { return 0; }\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockVCS) Tags(ctx context.Context, remote string) ([]string, error) { return nil, nil }

// fakeGenerator writes the linked bitcode where llvm-ir-cmake-utils would.
// Versions listed in fail get a build error; those in hang block until
// their context ends.
type fakeGenerator struct {
	fail map[string]bool
	hang map[string]bool

	mu    sync.Mutex
	built []string
}

func version(buildDir string) string {
	return filepath.Base(filepath.Dir(buildDir))
}

func (g *fakeGenerator) Generate(ctx context.Context, sourceDir, buildDir string, env map[string]string) error {
	return nil
}

func (g *fakeGenerator) Build(ctx context.Context, buildDir, target string) error {
	v := version(buildDir)
	g.mu.Lock()
	g.built = append(g.built, v)
	g.mu.Unlock()

	args := []string{"cmake", "--build", buildDir, "--target", target}
	if g.hang[v] {
		<-ctx.Done()
		return &buildsys.ExecError{Args: args, Err: ctx.Err()}
	}
	if g.fail[v] {
		return &buildsys.ExecError{Args: args, Output: "main.c:1: error", Err: fmt.Errorf("exit status 2")}
	}
	p := filepath.Join(buildDir, "llvm-ir", target, target+".bc")
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte("BC"), 0644)
}

func (g *fakeGenerator) builds() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.built...)
}

// fakeComparator records the argument vector it would have been run with.
type fakeComparator struct {
	calls int
	args  []string
	code  int
}

func (c *fakeComparator) Invoke(ctx context.Context, records []*record.Record) (int, error) {
	c.calls++
	args, err := comparator.Args(records)
	if err != nil {
		return 0, err
	}
	c.args = args
	return c.code, nil
}
