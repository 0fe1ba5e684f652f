// Package record holds the per-version bookkeeping shared by the staging,
// build and comparator stages.
package record

import (
	"fmt"
	"os"
	"slices"
)

// State is the build state of a single requested version.
type State int

const (
	Unstaged State = iota
	Staged
	Rewritten
	Built
	FilesGathered
	Skipped
	Failed
)

func (s State) String() string {
	switch s {
	case Unstaged:
		return "unstaged"
	case Staged:
		return "staged"
	case Rewritten:
		return "rewritten"
	case Built:
		return "built"
	case FilesGathered:
		return "files-gathered"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Record describes one requested version identifier and everything the
// pipeline learned about it. Fields are written only through the Mark*
// methods, each of which checks that the producing stage ran in order.
type Record struct {
	id string

	stagingPath     string
	buildOutputPath string
	label           string
	sourcePaths     []string
	bitcodePath     string

	state State
	err   error
}

// New returns an Unstaged record for id.
func New(id string) *Record {
	return &Record{id: id}
}

func (r *Record) ID() string              { return r.id }
func (r *Record) State() State            { return r.state }
func (r *Record) Err() error              { return r.err }
func (r *Record) StagingPath() string     { return r.stagingPath }
func (r *Record) BuildOutputPath() string { return r.buildOutputPath }

// Label returns the linked bitcode target name found by the rewrite.
func (r *Record) Label() string { return r.label }

// SourcePaths returns a copy of the discovered source files in discovery order.
func (r *Record) SourcePaths() []string { return slices.Clone(r.sourcePaths) }

// Bitcode returns the discovered linked bitcode artifact, if any.
func (r *Record) Bitcode() (string, bool) {
	return r.bitcodePath, r.bitcodePath != ""
}

// Done reports whether r carries everything the comparator needs.
func (r *Record) Done() bool {
	switch r.state {
	case FilesGathered, Skipped:
		return r.bitcodePath != "" && len(r.sourcePaths) > 0
	}
	return false
}

// Reason returns the failure kind of a Failed record, or 0.
func (r *Record) Reason() Kind {
	if r.state != Failed {
		return 0
	}
	return KindOf(r.err)
}

func (r *Record) expect(op string, states ...State) error {
	if slices.Contains(states, r.state) {
		return nil
	}
	return fmt.Errorf("record %s: %s in state %s", r.id, op, r.state)
}

// MarkStaged records the isolated copy of the version tree.
func (r *Record) MarkStaged(stagingPath string) error {
	if err := r.expect("stage", Unstaged); err != nil {
		return err
	}
	r.stagingPath = stagingPath
	r.state = Staged
	return nil
}

// SetBuildOutput records the build output directory. It does not advance
// the state; the directory exists before the rewrite runs.
func (r *Record) SetBuildOutput(dir string) error {
	if err := r.expect("set build output", Staged); err != nil {
		return err
	}
	r.buildOutputPath = dir
	return nil
}

// MarkSkipped marks a staged version whose build outputs already exist.
func (r *Record) MarkSkipped() error {
	if err := r.expect("skip", Staged); err != nil {
		return err
	}
	r.state = Skipped
	return nil
}

// MarkRewritten records the linked target label produced by the rewrite.
func (r *Record) MarkRewritten(label string) error {
	if err := r.expect("rewrite", Staged); err != nil {
		return err
	}
	if label == "" {
		return fmt.Errorf("record %s: empty target label", r.id)
	}
	r.label = label
	r.state = Rewritten
	return nil
}

func (r *Record) MarkBuilt() error {
	if err := r.expect("build", Rewritten); err != nil {
		return err
	}
	r.state = Built
	return nil
}

// MarkGathered records the discovery results of a freshly built version.
// sources must be non-empty and bitcode must name an existing file.
func (r *Record) MarkGathered(sources []string, bitcode string) error {
	if err := r.expect("gather", Built); err != nil {
		return err
	}
	if err := r.setOutputs(sources, bitcode); err != nil {
		return err
	}
	r.state = FilesGathered
	return nil
}

// Restore fills the outputs of a Skipped record from an earlier run.
// An already known artifact is left untouched.
func (r *Record) Restore(label string, sources []string, bitcode string) error {
	if err := r.expect("restore", Skipped); err != nil {
		return err
	}
	if r.bitcodePath != "" {
		return nil
	}
	if err := r.setOutputs(sources, bitcode); err != nil {
		return err
	}
	r.label = label
	return nil
}

func (r *Record) setOutputs(sources []string, bitcode string) error {
	if len(sources) == 0 {
		return &Error{Kind: KindDiscovery, Version: r.id, Err: ErrNoSources}
	}
	fi, err := os.Stat(bitcode)
	if err != nil {
		return &Error{Kind: KindDiscovery, Version: r.id, Err: err}
	}
	if fi.IsDir() {
		return &Error{Kind: KindDiscovery, Version: r.id, Err: fmt.Errorf("%s is a directory", bitcode)}
	}
	r.sourcePaths = slices.Clone(sources)
	r.bitcodePath = bitcode
	return nil
}

// Fail moves r to the terminal Failed state.
func (r *Record) Fail(err error) {
	r.err = err
	r.state = Failed
}

// Reset returns r to Unstaged after its staging directory was removed.
func (r *Record) Reset() {
	*r = Record{id: r.id}
}

// Adopt copies everything but the identifier from src. It is used for
// duplicate requests that share one staging directory.
func (r *Record) Adopt(src *Record) {
	id := r.id
	*r = *src
	r.id = id
	r.sourcePaths = slices.Clone(src.sourcePaths)
}
