package preflight

import (
	"fmt"
	"path/filepath"

	"filescleaner/internal/config"
	"filescleaner/internal/sizeunit"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckWritableParent("State directory", cfg.Monitor.StateDir))
	if cfg.Logging.File != "" {
		results = append(results, CheckWritableParent("Log directory", filepath.Dir(cfg.Logging.File)))
	}

	specs, err := cfg.Watched()
	if err != nil {
		return append(results, Result{Name: "Directories", Detail: err.Error()})
	}
	for _, spec := range specs {
		results = append(results, CheckDirectoryAccess(spec.Path, spec.Path))
		results = append(results, CheckCapacity(spec.Path, spec.Path, spec.DiskSize))
	}
	return results
}

// CheckCapacity compares the filesystem holding path with the disk size
// configured for it.
func CheckCapacity(name, path string, diskSize sizeunit.Size) Result {
	usage, err := FilesystemUsage(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("filesystem (error: %v)", err)}
	}
	detail := fmt.Sprintf("filesystem %s total, %s available",
		sizeunit.Human(int64(usage.Total)), sizeunit.Human(int64(usage.Available)))
	if diskSize.Bytes > 0 && usage.Total < uint64(diskSize.Bytes) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (disk_size %s exceeds filesystem size)", detail, diskSize)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
