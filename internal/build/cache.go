package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Build output layout:
//
//	<version>/build/
//	  .hydrogit.json                    # build cache, written on success
//	  llvm-ir/<t>_linked/<t>_linked.bc  # linked bitcode
//	  ...                               # everything else CMake produces
const cacheFile = ".hydrogit.json"

// buildCache records the discovery results of a successful build so a
// skipped version can be handed to the comparator without rescanning.
type buildCache struct {
	Label     string    `json:"label"`
	Sources   []string  `json:"sources"`
	Bitcode   string    `json:"bitcode"`
	BuildTime time.Time `json:"build_time"`
}

func loadBuildCache(buildDir string) (*buildCache, error) {
	data, err := os.ReadFile(filepath.Join(buildDir, cacheFile))
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func saveBuildCache(buildDir string, cache *buildCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(buildDir, cacheFile), data, 0o644)
}
