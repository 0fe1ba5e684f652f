package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/gydrogen/hydrogit/pkgs/buildsys"
)

// fakeGenerator stands in for cmake: Build drops an empty linked bitcode
// file where llvm-ir-cmake-utils would put it.
type fakeGenerator struct {
	generated []map[string]string
	built     []string

	generateErr error
	buildErr    error
	// extra artifacts written on Build, relative to the build dir
	extra []string
}

func (g *fakeGenerator) Generate(ctx context.Context, sourceDir, buildDir string, env map[string]string) error {
	g.generated = append(g.generated, env)
	if g.generateErr != nil {
		return g.generateErr
	}
	return os.WriteFile(filepath.Join(buildDir, "CMakeCache.txt"), nil, 0644)
}

func (g *fakeGenerator) Build(ctx context.Context, buildDir, target string) error {
	g.built = append(g.built, target)
	if g.buildErr != nil {
		return g.buildErr
	}
	if err := ctx.Err(); err != nil {
		return &buildsys.ExecError{Args: []string{"cmake", "--build"}, Err: err}
	}
	files := append([]string{filepath.Join("llvm-ir", target, target+".bc")}, g.extra...)
	for _, f := range files {
		p := filepath.Join(buildDir, f)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte("BC"), 0644); err != nil {
			return err
		}
	}
	return nil
}

var errExit = errors.New("exit status 1")
