package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"filescleaner/internal/logging"
	"filescleaner/internal/scanner"
	"filescleaner/internal/sizeunit"
)

const root = "/srv/captures"

type fixture struct {
	fs  afero.Fs
	dir *Directory
}

func newFixture(t *testing.T, maxSize, diskSize string, sizes ...int) fixture {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll(root, 0o755))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, size := range sizes {
		path := filepath.Join(root, fmt.Sprintf("file-%02d.bin", i))
		require.NoError(t, afero.WriteFile(mem, path, make([]byte, size), 0o644))
		stamp := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, mem.Chtimes(path, stamp, stamp))
	}

	dir, err := New(Settings{
		Path:         root,
		MaxSize:      sizeunit.MustParse(maxSize),
		DiskSize:     sizeunit.MustParse(diskSize),
		ScanInterval: time.Minute,
	}, Deps{
		Scanner: scanner.New(mem, logging.NewNop()),
		Remover: mem,
		Logger:  logging.NewNop(),
	})
	require.NoError(t, err)
	return fixture{fs: mem, dir: dir}
}

func TestNewValidatesSettings(t *testing.T) {
	valid := Settings{
		Path:         "/srv/data",
		MaxSize:      sizeunit.MustParse("1G"),
		DiskSize:     sizeunit.MustParse("2G"),
		ScanInterval: time.Minute,
	}

	cases := []struct {
		name   string
		mutate func(*Settings)
		want   error
	}{
		{"root", func(s *Settings) { s.Path = "/" }, ErrRootPath},
		{"root with dots", func(s *Settings) { s.Path = "/srv/.." }, ErrRootPath},
		{"zero max", func(s *Settings) { s.MaxSize = sizeunit.Size{} }, ErrInvalid},
		{"disk below max", func(s *Settings) { s.DiskSize = sizeunit.MustParse("512M") }, ErrInvalid},
		{"zero interval", func(s *Settings) { s.ScanInterval = 0 }, ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := valid
			tc.mutate(&settings)
			_, err := New(settings, Deps{})
			require.ErrorIs(t, err, tc.want)
		})
	}

	dir, err := New(valid, Deps{})
	require.NoError(t, err)
	require.Equal(t, "/srv/data", dir.Path())
	require.Equal(t, int64(1<<30+1<<29), dir.GrowthThreshold())
}

func TestCleanupBeforeScan(t *testing.T) {
	f := newFixture(t, "1k", "2k", 10)

	require.False(t, f.dir.NeedsCleanup())
	require.False(t, f.dir.IsGrowthAlarming())
	_, err := f.dir.Cleanup(context.Background())
	require.ErrorIs(t, err, ErrNotScanned)
}

func TestShouldRescanFollowsInterval(t *testing.T) {
	f := newFixture(t, "1k", "2k", 10)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.True(t, f.dir.ShouldRescan(now))
	require.NoError(t, f.dir.Rescan(context.Background(), now))
	require.False(t, f.dir.ShouldRescan(now.Add(59*time.Second)))
	require.True(t, f.dir.ShouldRescan(now.Add(time.Minute)))
}

func TestCleanupEvictsOldestFirst(t *testing.T) {
	f := newFixture(t, "3000", "6000", 1024, 1025, 1028, 1033, 1040)
	ctx := context.Background()

	require.NoError(t, f.dir.Rescan(ctx, time.Now()))
	require.Equal(t, int64(5150), f.dir.TotalSize())
	require.True(t, f.dir.NeedsCleanup())

	report, err := f.dir.Cleanup(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.Attempted)
	require.Equal(t, int64(3077), report.BytesFreed)
	require.False(t, report.Shortfall())
	require.Equal(t, int64(2073), f.dir.TotalSize())
	require.False(t, f.dir.NeedsCleanup())

	for i := 0; i < 3; i++ {
		exists, err := afero.Exists(f.fs, filepath.Join(root, fmt.Sprintf("file-%02d.bin", i)))
		require.NoError(t, err)
		require.False(t, exists, "file %d should be gone", i)
	}
	for i := 3; i < 5; i++ {
		exists, err := afero.Exists(f.fs, filepath.Join(root, fmt.Sprintf("file-%02d.bin", i)))
		require.NoError(t, err)
		require.True(t, exists, "file %d should remain", i)
	}

	again, err := f.dir.Cleanup(ctx)
	require.NoError(t, err)
	require.True(t, again.Empty())
}

func TestCleanupUnderCeilingIsNoop(t *testing.T) {
	f := newFixture(t, "1k", "2k", 100, 200)
	require.NoError(t, f.dir.Rescan(context.Background(), time.Now()))

	report, err := f.dir.Cleanup(context.Background())
	require.NoError(t, err)
	require.True(t, report.Empty())
	require.Equal(t, int64(300), f.dir.TotalSize())
}

// failingRemover refuses to delete one path.
type failingRemover struct {
	afero.Fs
	deny string
}

func (r failingRemover) Remove(name string) error {
	if name == r.deny {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrPermission}
	}
	return r.Fs.Remove(name)
}

func TestCleanupReportsShortfall(t *testing.T) {
	mem := afero.NewMemMapFs()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sizes := []int{1500, 500, 1000}
	for i, size := range sizes {
		path := filepath.Join(root, fmt.Sprintf("file-%02d.bin", i))
		require.NoError(t, afero.WriteFile(mem, path, make([]byte, size), 0o644))
		stamp := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, mem.Chtimes(path, stamp, stamp))
	}

	dir, err := New(Settings{
		Path:         root,
		MaxSize:      sizeunit.MustParse("1200"),
		DiskSize:     sizeunit.MustParse("5000"),
		ScanInterval: time.Minute,
	}, Deps{
		Scanner: scanner.New(mem, nil),
		Remover: failingRemover{Fs: mem, deny: filepath.Join(root, "file-00.bin")},
	})
	require.NoError(t, err)
	require.NoError(t, dir.Rescan(context.Background(), time.Now()))

	report, err := dir.Cleanup(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Attempted)
	require.Equal(t, int64(2000), report.TargetBytes)
	require.Equal(t, int64(500), report.BytesFreed)
	require.True(t, report.Shortfall())
	require.Len(t, report.Failures, 1)
	require.True(t, errors.Is(report.Failures[0].Err, fs.ErrPermission))
	require.Equal(t, int64(2500), dir.TotalSize())
}

func TestGrowthAlarm(t *testing.T) {
	// max 1000, disk 3000: the alarm fires above 2000 bytes.
	f := newFixture(t, "1000", "3000", 1000, 1000)
	ctx := context.Background()
	require.NoError(t, f.dir.Rescan(ctx, time.Now()))
	require.False(t, f.dir.IsGrowthAlarming())

	require.NoError(t, afero.WriteFile(f.fs, filepath.Join(root, "late.bin"), make([]byte, 1), 0o644))
	require.NoError(t, f.dir.Rescan(ctx, time.Now()))
	require.True(t, f.dir.IsGrowthAlarming())
	require.True(t, f.dir.Snapshot().Alarming)

	_, err := f.dir.Cleanup(ctx)
	require.NoError(t, err)
	require.False(t, f.dir.IsGrowthAlarming())
}

func TestRescanFailureKeepsPreviousInventory(t *testing.T) {
	f := newFixture(t, "1k", "2k", 100)
	ctx := context.Background()
	first := time.Now()
	require.NoError(t, f.dir.Rescan(ctx, first))

	require.NoError(t, f.fs.RemoveAll(root))
	err := f.dir.Rescan(ctx, first.Add(time.Hour))
	require.Error(t, err)

	snap := f.dir.Snapshot()
	require.True(t, snap.Scanned)
	require.Equal(t, int64(100), snap.TotalBytes)
	require.Equal(t, first, snap.LastScanAt)
}

func TestCleanupThroughSymlinkedPath(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "recordings")
	require.NoError(t, os.Mkdir(target, 0o755))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(target, fmt.Sprintf("file-%02d.bin", i)), make([]byte, 60), 0o644))
	}
	link := filepath.Join(base, "watched")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	fsys := afero.NewOsFs()
	dir, err := New(Settings{
		Path:         link,
		MaxSize:      sizeunit.MustParse("100"),
		DiskSize:     sizeunit.MustParse("1k"),
		ScanInterval: time.Minute,
	}, Deps{Scanner: scanner.New(fsys, nil), Remover: fsys})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dir.Rescan(ctx, time.Now()))
	require.Equal(t, int64(180), dir.TotalSize())

	report, err := dir.Cleanup(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Attempted)
	require.Equal(t, int64(120), report.BytesFreed)
	require.Empty(t, report.Failures)

	left, err := os.ReadDir(target)
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, int64(60), dir.TotalSize())
}

func TestNewRejectsSymlinkToRoot(t *testing.T) {
	link := filepath.Join(t.TempDir(), "everything")
	if err := os.Symlink("/", link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, err := New(Settings{
		Path:         link,
		MaxSize:      sizeunit.MustParse("1G"),
		DiskSize:     sizeunit.MustParse("2G"),
		ScanInterval: time.Minute,
	}, Deps{})
	require.ErrorIs(t, err, ErrRootPath)
}
