package comparator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gydrogen/hydrogit/internal/record"
	"github.com/gydrogen/hydrogit/internal/testutil"
)

func threeVersions(t *testing.T) []*record.Record {
	root := t.TempDir()
	return []*record.Record{
		testutil.GatheredRecord(t, "v1", filepath.Join(root, "v1"), "/v1/main.c"),
		testutil.GatheredRecord(t, "v2", filepath.Join(root, "v2"), "/v2/main.c", "/v2/src/util.c"),
		testutil.GatheredRecord(t, "v3", filepath.Join(root, "v3"), "/v3/main.c"),
	}
}

func bitcode(r *record.Record) string {
	bc, _ := r.Bitcode()
	return bc
}

func TestArgsOrder(t *testing.T) {
	recs := threeVersions(t)
	got, err := Args(recs)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		bitcode(recs[0]), bitcode(recs[1]), bitcode(recs[2]),
		"::", "/v1/main.c",
		"::", "/v2/main.c", "/v2/src/util.c",
		"::", "/v3/main.c",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Args mismatch (-want +got):\n%s", diff)
	}
}

func TestArgsIncomplete(t *testing.T) {
	if _, err := Args([]*record.Record{record.New("v1")}); err == nil {
		t.Error("Args of an unbuilt record should fail")
	}
}

// fakeComparator writes a script that logs one argument per line to
// args.txt in its working directory and exits with status.
func fakeComparator(t *testing.T, status string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	bin := filepath.Join(t.TempDir(), "Hydrogen.out")
	script := "#!/bin/sh\nfor a in \"$@\"; do echo \"$a\" >> args.txt; done\necho analysed\nexit " + status + "\n"
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestInvoke(t *testing.T) {
	recs := threeVersions(t)
	var stdout bytes.Buffer
	a := &Adapter{Binary: fakeComparator(t, "0"), Dir: filepath.Join(t.TempDir(), "results"), Stdout: &stdout}

	code, err := a.Invoke(context.Background(), recs)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}
	data, err := os.ReadFile(filepath.Join(a.Dir, "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := Args(recs)
	if diff := cmp.Diff(want, strings.Split(strings.TrimSpace(string(data)), "\n")); diff != "" {
		t.Errorf("argument vector (-want +got):\n%s", diff)
	}
	if strings.TrimSpace(stdout.String()) != "analysed" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestInvokeForwardsExitCode(t *testing.T) {
	a := &Adapter{Binary: fakeComparator(t, "7"), Dir: t.TempDir(), Stdout: &bytes.Buffer{}}
	code, err := a.Invoke(context.Background(), threeVersions(t))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestInvokeMissingBinary(t *testing.T) {
	_, err := Invoke(context.Background(), filepath.Join(t.TempDir(), "Hydrogen.out"), threeVersions(t))
	if !errors.Is(err, record.ErrInvocation) {
		t.Errorf("err = %v, want invocation error", err)
	}
}

func TestInvokeNotExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no execute permission bit")
	}
	bin := filepath.Join(t.TempDir(), "Hydrogen.out")
	testutil.WriteFile(t, bin, "#!/bin/sh\n")
	_, err := Invoke(context.Background(), bin, threeVersions(t))
	if !errors.Is(err, record.ErrInvocation) {
		t.Errorf("err = %v, want invocation error", err)
	}
}

func TestInvokeRelativeBinary(t *testing.T) {
	bin := fakeComparator(t, "0")
	t.Chdir(filepath.Dir(filepath.Dir(bin)))

	rel := filepath.Join(filepath.Base(filepath.Dir(bin)), filepath.Base(bin))
	a := &Adapter{Binary: rel, Dir: filepath.Join("tmp", "results"), Stdout: &bytes.Buffer{}}
	code, err := a.Invoke(context.Background(), threeVersions(t))
	if err != nil {
		t.Fatalf("Invoke(%q) failed: %v", rel, err)
	}
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join("tmp", "results", "args.txt")); err != nil {
		t.Errorf("comparator did not run in its result directory: %v", err)
	}
}

func TestInvokeKilledBySignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	bin := filepath.Join(t.TempDir(), "Hydrogen.out")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nkill -9 $$\n"), 0755); err != nil {
		t.Fatal(err)
	}
	a := &Adapter{Binary: bin, Dir: t.TempDir(), Stdout: &bytes.Buffer{}}
	code, err := a.Invoke(context.Background(), threeVersions(t))
	if !errors.Is(err, record.ErrInvocation) {
		t.Errorf("Invoke = %d, %v; want invocation error", code, err)
	}
}
