//go:build linux

package scanner

import (
	"io/fs"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// createdAt prefers the inode birth time. Kernels and filesystems that do not
// report it fall back to the status change time, then to the modification
// time for filesystems without native stat data.
func createdAt(path string, info fs.FileInfo, native bool) time.Time {
	if native {
		var stx unix.Statx_t
		err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
		if err == nil && stx.Mask&unix.STATX_BTIME != 0 {
			return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
		}
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Unix())
	}
	return info.ModTime()
}
