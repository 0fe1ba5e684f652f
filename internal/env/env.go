// Package env resolves hydrogit's settings from defaults, an optional
// .env file and HYDROGIT_* environment variables.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	WorkDirVar     = "HYDROGIT_WORKDIR"
	ComparatorVar  = "HYDROGIT_COMPARATOR"
	LLVMIRUtilsVar = "HYDROGIT_LLVMIR_UTILS"
	GitVar         = "HYDROGIT_GIT"
	CMakeVar       = "HYDROGIT_CMAKE"
	CCVar          = "HYDROGIT_CC"
	CXXVar         = "HYDROGIT_CXX"
	TimeoutVar     = "HYDROGIT_TIMEOUT"
	JobsVar        = "HYDROGIT_JOBS"
	GeneratorVar   = "HYDROGIT_CMAKE_GENERATOR"
	BuildTypeVar   = "HYDROGIT_BUILD_TYPE"
)

// DotEnv is the file read from the current directory, if present.
const DotEnv = ".env"

// Config holds the resolved settings. Paths left empty are derived from
// WorkDir by the accessors.
type Config struct {
	WorkDir     string
	Comparator  string
	LLVMIRUtils string
	Git         string
	CMake       string
	CC          string
	CXX         string
	Timeout     time.Duration
	Jobs        int

	// CMake configure settings; empty values leave cmake's defaults.
	Generator string
	BuildType string
	Defines   []Define
}

// Define is one -DKEY=VALUE cache entry passed to cmake.
type Define struct {
	Key, Value string
}

// Load reads files (default DotEnv) without overriding variables already
// set, then builds a Config from the environment. Missing files are not
// an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{DotEnv}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from HYDROGIT_* variables over the defaults.
func FromEnv() (*Config, error) {
	c := &Config{
		WorkDir:     getenv(WorkDirVar),
		Comparator:  getenv(ComparatorVar),
		LLVMIRUtils: getenv(LLVMIRUtilsVar),
		Git:         firstNonEmpty(getenv(GitVar), "git"),
		CMake:       firstNonEmpty(getenv(CMakeVar), "cmake"),
		CC:          firstNonEmpty(getenv(CCVar), "clang"),
		CXX:         firstNonEmpty(getenv(CXXVar), "clang++"),
		Jobs:        1,
		Generator:   getenv(GeneratorVar),
		BuildType:   getenv(BuildTypeVar),
	}
	if c.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		c.WorkDir = wd
	}
	if v := getenv(TimeoutVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%s: invalid duration %q", TimeoutVar, v)
		}
		c.Timeout = d
	}
	if v := getenv(JobsVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%s: want a positive integer, got %q", JobsVar, v)
		}
		c.Jobs = n
	}
	return c, nil
}

// StagingRoot is the directory holding the clone and per-version copies.
func (c *Config) StagingRoot() string {
	return filepath.Join(c.WorkDir, "tmp")
}

// ComparatorPath is the comparator binary.
func (c *Config) ComparatorPath() string {
	if c.Comparator != "" {
		return c.Comparator
	}
	return filepath.Join(c.WorkDir, "build", "Hydrogen.out")
}

// LLVMIRUtilsPath is the llvm-ir-cmake-utils module directory.
func (c *Config) LLVMIRUtilsPath() string {
	if c.LLVMIRUtils != "" {
		return c.LLVMIRUtils
	}
	return filepath.Join(c.WorkDir, "llvm-ir-cmake-utils", "cmake")
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
