// Package cmake drives CMake builds and rewrites CMakeLists.txt to emit
// linked LLVM bitcode.
package cmake

import (
	"bytes"
	"context"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"

	"github.com/gydrogen/hydrogit/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// CMake runs the configure and build steps of a CMake project.
type CMake struct {
	bin       string
	generator string
	buildType string
	defines   map[string]string
	stdout    io.Writer
}

var _ buildsys.Generator = (*CMake)(nil)

// New returns a CMake using the cmake executable bin ("cmake" if empty).
func New(bin string) *CMake {
	if bin == "" {
		bin = "cmake"
	}
	return &CMake{
		bin:     bin,
		defines: map[string]string{},
	}
}

// Generator sets the CMake generator (e.g. "Ninja", "Unix Makefiles").
func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

// BuildType sets CMAKE_BUILD_TYPE.
func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

// Define adds a -DKEY=VALUE cache entry to the configure step.
func (c *CMake) Define(key, value string) *CMake {
	c.defines[key] = value
	return c
}

// Stream mirrors tool output to w while it is captured.
func (c *CMake) Stream(w io.Writer) *CMake {
	c.stdout = w
	return c
}

func (c *CMake) Generate(ctx context.Context, sourceDir, buildDir string, env map[string]string) error {
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return err
	}
	args := []string{"-S", sourceDir, "-B", buildDir}
	if c.generator != "" {
		args = append(args, "-G", c.generator)
	}
	args = append(args, c.definesArgs()...)
	return c.run(ctx, args, env)
}

func (c *CMake) Build(ctx context.Context, buildDir, target string) error {
	args := []string{"--build", buildDir}
	if target != "" {
		args = append(args, "--target", target)
	}
	if c.buildType != "" {
		args = append(args, "--config", c.buildType)
	}
	return c.run(ctx, args, nil)
}

// definesArgs returns the -D arguments in key order. Generate may run
// concurrently for several build trees, so c.defines is only read here.
func (c *CMake) definesArgs() []string {
	defines := maps.Clone(c.defines)
	if c.buildType != "" {
		defines["CMAKE_BUILD_TYPE"] = c.buildType
	}
	args := make([]string, 0, len(defines))
	for _, k := range slices.Sorted(maps.Keys(defines)) {
		args = append(args, "-D"+k+"="+defines[k])
	}
	return args
}

func (c *CMake) run(ctx context.Context, args []string, env map[string]string) error {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var out bytes.Buffer
	if c.stdout != nil {
		cmd.Stdout = io.MultiWriter(&out, c.stdout)
		cmd.Stderr = cmd.Stdout
	} else {
		cmd.Stdout = &out
		cmd.Stderr = &out
	}
	if len(env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), env)
	}

	log.Debugf("%s %s", c.bin, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &buildsys.ExecError{
			Args:   append([]string{c.bin}, args...),
			Output: out.String(),
			Err:    err,
		}
	}
	return nil
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
