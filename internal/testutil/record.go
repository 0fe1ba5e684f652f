package testutil

import (
	"path/filepath"
	"testing"

	"github.com/gydrogen/hydrogit/internal/record"
)

// GatheredRecord returns a FilesGathered record for id staged in dir, with
// a linked bitcode file created under dir/build and the given sources.
func GatheredRecord(t *testing.T, id, dir string, sources ...string) *record.Record {
	t.Helper()
	bc := filepath.Join(dir, "build", "llvm-ir", "prog_linked", "prog_linked.bc")
	WriteFile(t, bc, "BC")

	r := record.New(id)
	steps := []error{
		r.MarkStaged(dir),
		r.SetBuildOutput(filepath.Join(dir, "build")),
		r.MarkRewritten("prog_linked"),
		r.MarkBuilt(),
		r.MarkGathered(sources, bc),
	}
	for _, err := range steps {
		if err != nil {
			t.Fatal(err)
		}
	}
	return r
}
