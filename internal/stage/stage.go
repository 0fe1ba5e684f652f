// Package stage materializes versions of a repository as isolated
// directory trees under a staging root.
//
// Staging root layout:
//
//	root/
//	  .lock        # held by the running pipeline
//	  cloned/      # canonical clone, checked out to each version in turn
//	  <version>/   # copy of the tree at <version>, without .git
package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/gydrogen/hydrogit/internal/vcs"
	"github.com/qiniu/x/log"
)

const (
	ClonedDir  = "cloned"
	ResultsDir = "results"
	LockFile   = ".lock"
)

var reserved = map[string]bool{ClonedDir: true, ResultsDir: true}

// Stager clones a repository once and copies requested versions out of it.
// A Stager is not safe for concurrent use: every version is checked out
// in the same shared clone.
type Stager struct {
	vcs  vcs.VCS
	root string

	// claimed maps a case-folded directory name to the identifier staged
	// in it, so two identifiers never share a tree on case-insensitive
	// file systems.
	claimed map[string]string
}

// New returns a Stager rooted at root.
func New(v vcs.VCS, root string) *Stager {
	return &Stager{vcs: v, root: root, claimed: make(map[string]string)}
}

// Root returns the staging root.
func (s *Stager) Root() string { return s.root }

// ClonePath returns the location of the canonical clone.
func (s *Stager) ClonePath() string { return filepath.Join(s.root, ClonedDir) }

// nameEscaper percent-encodes path separators, and '%' itself so the
// mapping stays one-to-one.
var nameEscaper = strings.NewReplacer("%", "%25", "/", "%2F", `\`, "%5C")

// DirName maps a version identifier to its directory name under the
// staging root. Distinct identifiers get distinct names; branch names like
// "release/1.0" become "release%2F1.0" and stay one level deep.
func DirName(identifier string) (string, error) {
	name := nameEscaper.Replace(identifier)
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("invalid version identifier %q", identifier)
	case reserved[name], strings.HasPrefix(name, "."):
		return "", fmt.Errorf("version identifier %q collides with a reserved staging name", identifier)
	}
	return name, nil
}

// EnsureCloned clones repoURL into the staging root unless a clone already
// exists. With force, the existing clone and every version copy are
// removed first.
func (s *Stager) EnsureCloned(ctx context.Context, repoURL string, force bool) error {
	cloned := s.ClonePath()
	if force {
		log.Infof("removing staged versions under %s", s.root)
		if err := s.clean(); err != nil {
			return record.NewError(record.KindAcquisition, "", "clean staging root", err)
		}
	} else if _, err := os.Stat(filepath.Join(cloned, vcs.MetadataDir)); err == nil {
		log.Infof("%s exists, will not clone", cloned)
		return nil
	}

	// A leftover directory without metadata is an interrupted clone.
	if err := os.RemoveAll(cloned); err != nil {
		return record.NewError(record.KindAcquisition, "", "remove partial clone", err)
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return record.NewError(record.KindAcquisition, "", "create staging root", err)
	}

	log.Infof("cloning %s into %s", repoURL, cloned)
	if err := s.vcs.Clone(ctx, repoURL, cloned); err != nil {
		os.RemoveAll(cloned)
		return record.NewError(record.KindAcquisition, "", "clone "+repoURL, err)
	}
	return nil
}

// clean removes everything under the root except the lock file.
func (s *Stager) clean() error {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == LockFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// MaterializeVersion checks out identifier in the canonical clone and
// copies the tree, without version control metadata, into its own
// directory. An existing copy is reused unless force is set.
func (s *Stager) MaterializeVersion(ctx context.Context, identifier string, force bool) (string, error) {
	name, err := DirName(identifier)
	if err != nil {
		return "", record.NewError(record.KindAcquisition, identifier, "", err)
	}
	key := strings.ToLower(name)
	if other, ok := s.claimed[key]; ok && other != identifier {
		return "", record.NewError(record.KindAcquisition, identifier, "",
			fmt.Errorf("staging directory of %q would be shared with %q", identifier, other))
	}
	s.claimed[key] = identifier
	dst := filepath.Join(s.root, name)

	if _, err := os.Stat(dst); err == nil {
		if !force {
			log.Infof("%s exists, will not copy", dst)
			return dst, nil
		}
		if err := os.RemoveAll(dst); err != nil {
			return "", record.NewError(record.KindAcquisition, identifier, "remove staged copy", err)
		}
	}

	if err := s.vcs.Checkout(ctx, s.ClonePath(), identifier); err != nil {
		return "", record.NewError(record.KindAcquisition, identifier, "checkout", err)
	}

	// Copy next to the destination and rename, so an interrupted copy is
	// never mistaken for a staged version. Dot names are never version
	// directories.
	tmp := filepath.Join(s.root, "."+name+".partial")
	if err := os.RemoveAll(tmp); err != nil {
		return "", record.NewError(record.KindAcquisition, identifier, "remove partial copy", err)
	}
	log.Infof("copying %s to %s", identifier, dst)
	if err := copyTree(s.ClonePath(), tmp, vcs.MetadataDir); err != nil {
		os.RemoveAll(tmp)
		return "", record.NewError(record.KindAcquisition, identifier, "copy", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.RemoveAll(tmp)
		return "", record.NewError(record.KindAcquisition, identifier, "copy", err)
	}
	return dst, nil
}

// Stage materializes rec's version and marks it Staged. With force, rec
// is reset first since its previous staging directory is discarded.
func (s *Stager) Stage(ctx context.Context, rec *record.Record, force bool) error {
	if force {
		rec.Reset()
	}
	path, err := s.MaterializeVersion(ctx, rec.ID(), force)
	if err != nil {
		return err
	}
	return rec.MarkStaged(path)
}
