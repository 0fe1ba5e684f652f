// Package comparator invokes the external multi-version analysis binary.
//
// The binary takes every version's linked bitcode followed by one
// "::"-introduced source list per version, in the same order:
//
//	<bc_1> ... <bc_N> :: <src_1a> <src_1b> ... :: ... :: <src_Na> ...
package comparator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/qiniu/x/log"
)

// Separator introduces the source list of the next version.
const Separator = "::"

// Args builds the argument vector for records, keeping their order.
// Every record must carry its bitcode and at least one source.
func Args(records []*record.Record) ([]string, error) {
	var bitcodes, sources []string
	for _, r := range records {
		bc, ok := r.Bitcode()
		if !ok {
			return nil, fmt.Errorf("version %s has no bitcode artifact", r.ID())
		}
		srcs := r.SourcePaths()
		if len(srcs) == 0 {
			return nil, fmt.Errorf("version %s has no source files", r.ID())
		}
		bitcodes = append(bitcodes, bc)
		sources = append(sources, Separator)
		sources = append(sources, srcs...)
	}
	return append(bitcodes, sources...), nil
}

// Adapter runs the comparator binary.
type Adapter struct {
	Binary string

	// Dir is the working directory of the comparator, where it leaves its
	// result files. Empty means the current directory.
	Dir string

	Stdout io.Writer
	Stderr io.Writer
}

// New returns an Adapter for binary that forwards output to the process.
func New(binary string) *Adapter {
	return &Adapter{Binary: binary, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Invoke runs the comparator on records and returns its exit code as is.
// Its output is forwarded, never interpreted. A missing or
// non-executable binary is an invocation error.
func (a *Adapter) Invoke(ctx context.Context, records []*record.Record) (int, error) {
	// Dir changes how a relative Binary resolves, so pin it first.
	bin, err := filepath.Abs(a.Binary)
	if err != nil {
		return 0, record.NewError(record.KindInvocation, "", a.Binary, err)
	}
	if err := checkExecutable(bin); err != nil {
		return 0, record.NewError(record.KindInvocation, "", a.Binary, err)
	}
	args, err := Args(records)
	if err != nil {
		return 0, record.NewError(record.KindInvocation, "", "arguments", err)
	}
	if a.Dir != "" {
		if err := os.MkdirAll(a.Dir, 0755); err != nil {
			return 0, record.NewError(record.KindInvocation, "", "result directory", err)
		}
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = a.Dir
	cmd.Stdout = a.Stdout
	cmd.Stderr = a.Stderr

	log.Infof("running %s %s", bin, strings.Join(args, " "))
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		// ExitCode is -1 when a signal ended the process.
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
	}
	if err != nil {
		return 0, record.NewError(record.KindInvocation, "", a.Binary, err)
	}
	return 0, nil
}

// Invoke runs binary on records with the process's standard output.
func Invoke(ctx context.Context, binary string, records []*record.Record) (int, error) {
	return New(binary).Invoke(ctx, records)
}

func checkExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return access(path)
}
