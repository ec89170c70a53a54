//go:build !linux

package scanner

import (
	"io/fs"
	"time"
)

func createdAt(_ string, info fs.FileInfo, _ bool) time.Time {
	return info.ModTime()
}
