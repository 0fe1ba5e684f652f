// Package build turns a staged version into linked bitcode and records
// the sources and artifact the comparator consumes.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/gydrogen/hydrogit/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// OutputDir is the build output directory inside a staged version.
const OutputDir = "build"

// pristineSuffix marks the saved, never rewritten, descriptor.
const pristineSuffix = ".orig"

// Options configures a Builder.
type Options struct {
	Generator buildsys.Generator
	Rewriter  buildsys.Rewriter

	// Compilers maps a language to the compiler pinned through its
	// environment variable. Missing entries use DefaultCompilers.
	Compilers map[buildsys.Language]string
}

// DefaultCompilers are clang drivers; LLVMIRUtil needs clang to emit IR.
var DefaultCompilers = map[buildsys.Language]string{
	buildsys.C:   "clang",
	buildsys.CXX: "clang++",
}

// Builder builds staged versions. Builds of different versions touch
// disjoint directories and may run concurrently.
type Builder struct {
	gen       buildsys.Generator
	rewriter  buildsys.Rewriter
	compilers map[buildsys.Language]string
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	compilers := make(map[buildsys.Language]string, len(DefaultCompilers))
	for l, c := range DefaultCompilers {
		compilers[l] = c
	}
	for l, c := range opts.Compilers {
		if c != "" {
			compilers[l] = c
		}
	}
	return &Builder{gen: opts.Generator, rewriter: opts.Rewriter, compilers: compilers}
}

// Build builds the Staged version rec. If its build directory already
// exists and force is false, rec becomes Skipped and its outputs are
// restored from the previous build. Otherwise the descriptor is rewritten,
// generated, built and the outputs discovered, leaving rec FilesGathered.
// On error rec is left for the caller to mark Failed.
func (b *Builder) Build(ctx context.Context, rec *record.Record, lang buildsys.Language, force bool) error {
	if rec.State() != record.Staged {
		return fmt.Errorf("build %s: record is %s, want staged", rec.ID(), rec.State())
	}
	buildDir := filepath.Join(rec.StagingPath(), OutputDir)

	if _, err := os.Stat(buildDir); err == nil {
		if !force {
			log.Infof("%s exists, will not build", buildDir)
			if err := rec.SetBuildOutput(buildDir); err != nil {
				return err
			}
			if err := rec.MarkSkipped(); err != nil {
				return err
			}
			return b.restore(rec, buildDir, lang)
		}
		if err := os.RemoveAll(buildDir); err != nil {
			return record.NewError(record.KindBuild, rec.ID(), "remove build output", err)
		}
	}
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return record.NewError(record.KindBuild, rec.ID(), "create build output", err)
	}
	if err := rec.SetBuildOutput(buildDir); err != nil {
		return err
	}

	if err := b.compile(ctx, rec, lang, buildDir); err != nil {
		// The build directory is the skip marker; drop it so the next run
		// retries instead of skipping a broken build.
		os.RemoveAll(buildDir)
		return err
	}

	sources, bitcode, err := discover(rec, lang, buildDir)
	if err != nil {
		return err
	}
	if err := rec.MarkGathered(sources, bitcode); err != nil {
		return err
	}
	cache := &buildCache{
		Label:     rec.Label(),
		Sources:   sources,
		Bitcode:   bitcode,
		BuildTime: time.Now(),
	}
	if err := saveBuildCache(buildDir, cache); err != nil {
		log.Warnf("%s: cannot save build cache: %v", rec.ID(), err)
	}
	return nil
}

// compile runs rewrite, generate and build, advancing rec to Built.
func (b *Builder) compile(ctx context.Context, rec *record.Record, lang buildsys.Language, buildDir string) error {
	descriptor := filepath.Join(rec.StagingPath(), b.rewriter.Descriptor())
	if err := restorePristine(descriptor); err != nil {
		return record.NewError(record.KindRewrite, rec.ID(), "restore descriptor", err)
	}
	label, err := b.rewriter.Rewrite(descriptor, lang)
	if err != nil {
		return record.NewError(record.KindRewrite, rec.ID(), "rewrite "+descriptor, err)
	}
	if label == "" {
		return record.NewError(record.KindRewrite, rec.ID(), descriptor, record.ErrNothingToBuild)
	}
	if err := rec.MarkRewritten(label); err != nil {
		return err
	}

	env := map[string]string{lang.CompilerEnv(): b.compilers[lang]}
	log.Infof("%s: generating with %s=%s", rec.ID(), lang.CompilerEnv(), b.compilers[lang])
	if err := b.gen.Generate(ctx, rec.StagingPath(), buildDir, env); err != nil {
		return toolError(rec.ID(), "generate", err)
	}

	log.Infof("%s: building %s", rec.ID(), label)
	if err := b.gen.Build(ctx, buildDir, label); err != nil {
		return toolError(rec.ID(), "build "+label, err)
	}
	return rec.MarkBuilt()
}

// restore fills a skipped record from the build cache, falling back to
// discovery when the cache is missing or stale.
func (b *Builder) restore(rec *record.Record, buildDir string, lang buildsys.Language) error {
	if cache, err := loadBuildCache(buildDir); err == nil {
		if err := rec.Restore(cache.Label, cache.Sources, cache.Bitcode); err == nil {
			return nil
		}
		log.Debugf("%s: stale build cache, rediscovering", rec.ID())
	}
	sources, bitcode, err := discover(rec, lang, buildDir)
	if err != nil {
		return err
	}
	return rec.Restore("", sources, bitcode)
}

func discover(rec *record.Record, lang buildsys.Language, buildDir string) (sources []string, bitcode string, err error) {
	sources, err = DiscoverSources(rec.StagingPath(), lang)
	if err != nil {
		return nil, "", record.NewError(record.KindDiscovery, rec.ID(), "sources", err)
	}
	if len(sources) == 0 {
		return nil, "", record.NewError(record.KindDiscovery, rec.ID(), "sources", record.ErrNoSources)
	}
	bitcode, err = DiscoverBitcode(buildDir)
	if err != nil {
		return nil, "", record.NewError(record.KindDiscovery, rec.ID(), "bitcode", err)
	}
	return sources, bitcode, nil
}

// restorePristine makes path hold the descriptor as staged. The first call
// saves a copy; later calls put that copy back before a new rewrite.
func restorePristine(path string) error {
	saved := path + pristineSuffix
	if _, err := os.Stat(saved); err == nil {
		return copyFile(saved, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return copyFile(path, saved)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func toolError(version, op string, err error) error {
	e := record.NewError(record.KindBuild, version, op, err)
	var execErr *buildsys.ExecError
	if errors.As(err, &execErr) {
		e.Output = execErr.Output
	}
	return e
}
