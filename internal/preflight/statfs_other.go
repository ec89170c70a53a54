//go:build !linux && !darwin

package preflight

import (
	"errors"
	"runtime"
)

// Usage describes the filesystem holding a path.
type Usage struct {
	Total     uint64
	Available uint64
	Used      uint64
}

// FilesystemUsage is unsupported on this platform.
func FilesystemUsage(string) (Usage, error) {
	return Usage{}, errors.New("filesystem usage not supported on " + runtime.GOOS)
}
