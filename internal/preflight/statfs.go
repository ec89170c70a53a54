//go:build linux || darwin

package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Usage describes the filesystem holding a path.
type Usage struct {
	Total     uint64
	Available uint64
	Used      uint64
}

// FilesystemUsage reports the size of the filesystem holding path.
// Available counts only blocks usable by unprivileged users.
func FilesystemUsage(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	free := stat.Bfree * bsize
	return Usage{
		Total:     total,
		Available: stat.Bavail * bsize,
		Used:      total - free,
	}, nil
}
