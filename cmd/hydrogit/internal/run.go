package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gydrogen/hydrogit/internal/build"
	"github.com/gydrogen/hydrogit/internal/comparator"
	"github.com/gydrogen/hydrogit/internal/env"
	"github.com/gydrogen/hydrogit/internal/pipeline"
	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/gydrogen/hydrogit/internal/stage"
	"github.com/gydrogen/hydrogit/internal/vcs"
	"github.com/gydrogen/hydrogit/pkgs/buildsys"
	"github.com/gydrogen/hydrogit/pkgs/buildsys/cmake"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	forcePull     bool
	forceBuild    bool
	language      string
	comparatorBin string
	workDir       string
	jobs          int
	timeout       time.Duration
	verbose       bool
	generator     string
	buildType     string
	defines       []string
)

func init() {
	registerFlags(rootCmd.Flags())
}

func registerFlags(f *pflag.FlagSet) {
	f.BoolVarP(&forcePull, "force-pull", "p", false, "Discard the staging area and clone again")
	f.BoolVarP(&forceBuild, "force-build", "b", false, "Rebuild versions that already have build output")
	f.StringVarP(&language, "language", "l", string(buildsys.CXX), "Source language of the project (C or CXX)")
	f.StringVar(&comparatorBin, "comparator", "", "Comparator binary (default <workdir>/build/Hydrogen.out)")
	f.StringVar(&workDir, "workdir", "", "Working directory holding tmp/ (default current directory)")
	f.IntVarP(&jobs, "jobs", "j", 1, "Number of versions to build in parallel")
	f.DurationVar(&timeout, "timeout", 0, "Time limit for staging or building one version (0 for none)")
	f.BoolVarP(&verbose, "verbose", "v", false, "Show external commands and build output")
	f.StringVarP(&generator, "generator", "G", "", "CMake generator (default chosen by cmake)")
	f.StringVar(&buildType, "build-type", "", "CMAKE_BUILD_TYPE of every version")
	f.StringArrayVarP(&defines, "define", "D", nil, "Extra cmake cache entry KEY=VALUE (repeatable)")
}

// loadConfig resolves the configuration and lets explicitly set flags
// override it.
func loadConfig(f *pflag.FlagSet) (*env.Config, error) {
	cfg, err := env.Load()
	if err != nil {
		return nil, err
	}
	if f.Changed("workdir") {
		cfg.WorkDir = workDir
	}
	if f.Changed("comparator") {
		cfg.Comparator = comparatorBin
	}
	if f.Changed("jobs") {
		if jobs < 1 {
			return nil, fmt.Errorf("--jobs must be positive, got %d", jobs)
		}
		cfg.Jobs = jobs
	}
	if f.Changed("timeout") {
		if timeout < 0 {
			return nil, fmt.Errorf("--timeout must not be negative, got %v", timeout)
		}
		cfg.Timeout = timeout
	}
	if f.Changed("generator") {
		cfg.Generator = generator
	}
	if f.Changed("build-type") {
		cfg.BuildType = buildType
	}
	for _, d := range defines {
		key, value, ok := strings.Cut(d, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--define %q: want KEY=VALUE", d)
		}
		cfg.Defines = append(cfg.Defines, env.Define{Key: key, Value: value})
	}

	// The comparator runs in the results directory, so every path is made
	// absolute against the current directory here.
	for _, p := range []*string{&cfg.WorkDir, &cfg.Comparator, &cfg.LLVMIRUtils} {
		if *p == "" {
			continue
		}
		if *p, err = filepath.Abs(*p); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newOrchestrator(cfg *env.Config, stdout, stderr io.Writer) *pipeline.Orchestrator {
	gen := cmake.New(cfg.CMake).Generator(cfg.Generator).BuildType(cfg.BuildType)
	for _, d := range cfg.Defines {
		gen.Define(d.Key, d.Value)
	}
	if verbose {
		gen.Stream(stderr)
	}
	adapter := comparator.New(cfg.ComparatorPath())
	adapter.Dir = filepath.Join(cfg.StagingRoot(), stage.ResultsDir)
	adapter.Stdout = stdout
	adapter.Stderr = stderr

	return pipeline.New(pipeline.Options{
		Stager: stage.New(vcs.NewGitVCS(vcs.WithGitPath(cfg.Git)), cfg.StagingRoot()),
		Builder: build.NewBuilder(build.Options{
			Generator: gen,
			Rewriter:  cmake.NewRewriter(cfg.LLVMIRUtilsPath()),
			Compilers: map[buildsys.Language]string{
				buildsys.C:   cfg.CC,
				buildsys.CXX: cfg.CXX,
			},
		}),
		Comparator: adapter,
		Jobs:       cfg.Jobs,
		Timeout:    cfg.Timeout,
	})
}

func runCompare(cmd *cobra.Command, args []string) error {
	if verbose {
		log.SetOutputLevel(log.Ldebug)
	} else {
		log.SetOutputLevel(log.Linfo)
	}

	lang, err := buildsys.ParseLanguage(language)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	orch := newOrchestrator(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	res, err := orch.Run(ctx, pipeline.Request{
		RepoURL:    args[0],
		Versions:   args[1:],
		Language:   lang,
		ForcePull:  forcePull,
		ForceBuild: forceBuild,
	})
	printReport(cmd.ErrOrStderr(), res)
	if err != nil {
		return err
	}
	exitCode = res.ExitCode
	return nil
}

// printReport writes one line per requested version.
func printReport(w io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	for _, rec := range res.Records {
		switch {
		case rec.Done():
			bc, _ := rec.Bitcode()
			fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID(), rec.State(), bc)
		case rec.State() == record.Failed:
			fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID(), rec.State(), rec.Reason())
		default:
			fmt.Fprintf(w, "%s\t%s\n", rec.ID(), rec.State())
		}
	}
}
