// Package pipeline sequences staging, building and comparison of the
// requested versions of a repository.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gydrogen/hydrogit/internal/build"
	"github.com/gydrogen/hydrogit/internal/lockedfile"
	"github.com/gydrogen/hydrogit/internal/par"
	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/gydrogen/hydrogit/internal/stage"
	"github.com/gydrogen/hydrogit/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// MinVersions is the number of built versions the comparator needs.
const MinVersions = 2

// Comparator consumes the finished records in request order.
type Comparator interface {
	Invoke(ctx context.Context, records []*record.Record) (exitCode int, err error)
}

// Options configures an Orchestrator.
type Options struct {
	Stager  *stage.Stager
	Builder *build.Builder

	// Comparator is invoked once enough versions are built. Nil skips
	// the comparison.
	Comparator Comparator

	// Jobs bounds concurrent version builds; values below 1 mean 1.
	Jobs int

	// Timeout bounds each external step of a version (stage or build);
	// zero means no limit.
	Timeout time.Duration
}

// Request names what to build.
type Request struct {
	RepoURL    string
	Versions   []string
	Language   buildsys.Language
	ForcePull  bool
	ForceBuild bool
}

// Result holds one record per requested version, in request order.
type Result struct {
	Records []*record.Record

	// Invoked reports whether the comparator ran; ExitCode is its status.
	Invoked  bool
	ExitCode int
}

// Succeeded returns the records handed to the comparator.
func (r *Result) Succeeded() []*record.Record {
	var out []*record.Record
	for _, rec := range r.Records {
		if rec.Done() {
			out = append(out, rec)
		}
	}
	return out
}

// Failed returns the records that did not finish.
func (r *Result) Failed() []*record.Record {
	var out []*record.Record
	for _, rec := range r.Records {
		if !rec.Done() {
			out = append(out, rec)
		}
	}
	return out
}

// PartialFailure is returned when fewer than MinVersions versions built.
type PartialFailure struct {
	Succeeded int
	Failed    []*record.Record
}

func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of at least %d versions built", e.Succeeded, MinVersions)
	for _, rec := range e.Failed {
		if err := rec.Err(); err != nil {
			fmt.Fprintf(&b, "\n  %s: %v", rec.ID(), err)
		} else {
			fmt.Fprintf(&b, "\n  %s: %s", rec.ID(), rec.State())
		}
	}
	return b.String()
}

// Orchestrator runs the pipeline. It owns the records it creates; the
// stager and builder each mutate one record at a time.
type Orchestrator struct {
	stager     *stage.Stager
	builder    *build.Builder
	comparator Comparator
	jobs       int
	timeout    time.Duration
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		stager:     opts.Stager,
		builder:    opts.Builder,
		comparator: opts.Comparator,
		jobs:       max(opts.Jobs, 1),
		timeout:    opts.Timeout,
	}
}

// Run stages and builds every requested version, in order and without
// deduplication, then hands the built ones to the comparator. A failing
// version does not stop the others. The returned Result is non-nil even
// on error. Fewer than MinVersions built versions yields *PartialFailure
// and the comparator is not invoked.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Records: make([]*record.Record, len(req.Versions))}
	for i, id := range req.Versions {
		res.Records[i] = record.New(id)
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(o.stager.Root(), stage.LockFile)).Lock()
	if err != nil {
		return res, fmt.Errorf("lock staging root: %w", err)
	}
	defer unlock()

	if err := o.stager.EnsureCloned(ctx, req.RepoURL, req.ForcePull); err != nil {
		for _, rec := range res.Records {
			rec.Fail(err)
		}
		return res, err
	}

	// Checkout mutates the shared clone, so staging is serial. Duplicate
	// identifiers share the first occurrence's directory and build.
	primary := make(map[string]*record.Record)
	var work par.Work[*record.Record]
	for i, rec := range res.Records {
		if _, dup := primary[rec.ID()]; dup {
			continue
		}
		primary[rec.ID()] = rec
		log.Infof("[%d/%d] staging %s", i+1, len(res.Records), rec.ID())
		if err := o.step(ctx, func(ctx context.Context) error {
			return o.stager.Stage(ctx, rec, req.ForcePull)
		}); err != nil {
			log.Warnf("%s: %v", rec.ID(), err)
			rec.Fail(err)
			continue
		}
		work.Add(rec)
	}

	log.Infof("building %d versions with %d jobs", work.Len(), o.jobs)
	work.Do(o.jobs, func(rec *record.Record) {
		err := o.step(ctx, func(ctx context.Context) error {
			return o.builder.Build(ctx, rec, req.Language, req.ForceBuild)
		})
		if err != nil {
			log.Warnf("%s: %v", rec.ID(), err)
			rec.Fail(err)
		}
	})

	for _, rec := range res.Records {
		if p := primary[rec.ID()]; p != rec {
			rec.Adopt(p)
		}
	}

	succeeded := res.Succeeded()
	if len(succeeded) < MinVersions {
		return res, &PartialFailure{Succeeded: len(succeeded), Failed: res.Failed()}
	}
	if o.comparator == nil {
		return res, nil
	}

	code, err := o.comparator.Invoke(ctx, succeeded)
	if err != nil {
		return res, err
	}
	res.Invoked = true
	res.ExitCode = code
	return res, nil
}

func (o *Orchestrator) step(ctx context.Context, f func(context.Context) error) error {
	if o.timeout <= 0 {
		return f(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return f(ctx)
}
