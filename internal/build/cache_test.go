package build

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSaveAndLoadBuildCache(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().Truncate(time.Second)
	cache := &buildCache{
		Label:     "prog_linked",
		Sources:   []string{"/v1/main.c", "/v1/src/util.c"},
		Bitcode:   "/v1/build/llvm-ir/prog_linked/prog_linked.bc",
		BuildTime: now,
	}
	if err := saveBuildCache(dir, cache); err != nil {
		t.Fatalf("saveBuildCache failed: %v", err)
	}
	loaded, err := loadBuildCache(dir)
	if err != nil {
		t.Fatalf("loadBuildCache failed: %v", err)
	}
	if diff := cmp.Diff(cache.Sources, loaded.Sources); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
	if loaded.Label != cache.Label || loaded.Bitcode != cache.Bitcode {
		t.Errorf("loaded = %+v", loaded)
	}
	if !loaded.BuildTime.Equal(now) {
		t.Errorf("BuildTime mismatch: got %v, want %v", loaded.BuildTime, now)
	}
}

func TestLoadBuildCache_NotExist(t *testing.T) {
	if _, err := loadBuildCache(t.TempDir()); err == nil {
		t.Fatal("expected error for missing cache, got nil")
	}
}

func TestLoadBuildCache_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, cacheFile), []byte("invalid json"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if _, err := loadBuildCache(dir); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
