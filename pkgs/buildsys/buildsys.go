// Package buildsys defines the build-system seams used to turn a staged
// version into linked bitcode.
package buildsys

import (
	"context"
	"fmt"
	"strings"
)

// Language selects the compiler toolchain and source file extensions.
type Language string

const (
	C   Language = "C"
	CXX Language = "CXX"
)

// ParseLanguage accepts "C" or "CXX" in any case.
func ParseLanguage(s string) (Language, error) {
	switch l := Language(strings.ToUpper(strings.TrimSpace(s))); l {
	case C, CXX:
		return l, nil
	}
	return "", fmt.Errorf("unknown language %q, should be C or CXX", s)
}

// CompilerEnv returns the environment variable that pins the compiler.
func (l Language) CompilerEnv() string {
	if l == C {
		return "CC"
	}
	return "CXX"
}

// Extensions returns the source file extensions compiled for l.
func (l Language) Extensions() []string {
	if l == C {
		return []string{".c"}
	}
	return []string{".cpp", ".cc", ".cxx"}
}

// Naming of the derived targets and their artifact.
const (
	BitcodeSuffix = "_bc"
	LinkedSuffix  = "_linked"
	BitcodeExt    = ".bc"
)

// LinkedTarget returns the linked bitcode target derived from target.
func LinkedTarget(target string) string { return target + LinkedSuffix }

// Rewriter injects bitcode targets into a version's build descriptor.
//
// Rewrite is not idempotent; callers rewrite a pristine descriptor once.
// An empty label with a nil error means the descriptor declares no
// target and was left untouched.
type Rewriter interface {
	// Descriptor is the descriptor file name at the root of a tree.
	Descriptor() string

	Rewrite(path string, lang Language) (label string, err error)
}

// Generator drives the external build generator and executor.
type Generator interface {
	// Generate configures buildDir from the descriptor in sourceDir. env
	// overrides entries of the process environment.
	Generate(ctx context.Context, sourceDir, buildDir string, env map[string]string) error

	// Build builds target in a configured buildDir.
	Build(ctx context.Context, buildDir, target string) error
}

// ExecError reports a failed external command with its combined output.
type ExecError struct {
	Args   []string
	Output string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
