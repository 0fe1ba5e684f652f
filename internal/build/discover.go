package build

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/gydrogen/hydrogit/pkgs/buildsys"
)

// SourceSubdir is searched recursively for sources; the version root is
// searched one level deep only.
const SourceSubdir = "src"

// DiscoverSources returns the source files of lang in root followed by
// those anywhere under root/src. The order is lexical within each part
// and stable across runs.
func DiscoverSources(root string, lang buildsys.Language) ([]string, error) {
	exts := lang.Extensions()
	match := func(name string) bool {
		return slices.Contains(exts, filepath.Ext(name))
	}

	var sources []string
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && match(e.Name()) {
			sources = append(sources, filepath.Join(root, e.Name()))
		}
	}

	srcDir := filepath.Join(root, SourceSubdir)
	if fi, err := os.Stat(srcDir); err == nil && fi.IsDir() {
		err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && match(d.Name()) {
				sources = append(sources, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// DiscoverBitcode returns the single linked bitcode artifact under
// buildDir. None or more than one is a discovery error.
func DiscoverBitcode(buildDir string) (string, error) {
	suffix := buildsys.LinkedSuffix + buildsys.BitcodeExt
	var found []string
	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), suffix) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	switch len(found) {
	case 0:
		return "", record.ErrNoBitcode
	case 1:
		return found[0], nil
	}
	return "", &ambiguousError{paths: found}
}

type ambiguousError struct {
	paths []string
}

func (e *ambiguousError) Error() string {
	return record.ErrAmbiguous.Error() + ": " + strings.Join(e.paths, ", ")
}

func (e *ambiguousError) Unwrap() error { return record.ErrAmbiguous }
