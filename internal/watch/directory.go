package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"filescleaner/internal/inventory"
	"filescleaner/internal/logging"
	"filescleaner/internal/scanner"
	"filescleaner/internal/sizeunit"
)

var (
	// ErrRootPath rejects "/" as a watched directory.
	ErrRootPath = errors.New("refusing to watch the filesystem root")
	// ErrInvalid marks unusable thresholds or intervals.
	ErrInvalid = errors.New("invalid watched directory settings")
	// ErrNotScanned is returned by Cleanup before the first successful scan.
	ErrNotScanned = errors.New("directory has not been scanned")
)

// Scanner builds an inventory for a directory tree.
type Scanner interface {
	Scan(ctx context.Context, root string) (*inventory.Inventory, scanner.Stats, error)
}

// Settings describes one watched directory.
type Settings struct {
	Path         string
	MaxSize      sizeunit.Size
	DiskSize     sizeunit.Size
	ScanInterval time.Duration
}

// Deps are the collaborators of a Directory. Zero values use the host
// filesystem and a no-op logger.
type Deps struct {
	Scanner Scanner
	Remover inventory.Remover
	Logger  *slog.Logger
}

// Snapshot is a read-only view of a directory's state.
type Snapshot struct {
	Path       string
	MaxBytes   int64
	DiskBytes  int64
	TotalBytes int64
	Files      int
	Scanned    bool
	Alarming   bool
	LastScanAt time.Time
	LastStats  scanner.Stats
}

// Directory enforces a size ceiling on one directory tree.
type Directory struct {
	path     string
	maxSize  sizeunit.Size
	diskSize sizeunit.Size
	interval time.Duration

	scanner Scanner
	remover inventory.Remover
	logger  *slog.Logger

	inv        *inventory.Inventory
	lastScanAt time.Time
	lastStats  scanner.Stats
}

// New validates settings and returns an unscanned Directory.
func New(settings Settings, deps Deps) (*Directory, error) {
	path, err := filepath.Abs(filepath.Clean(settings.Path))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", settings.Path, err)
	}
	if path == filepath.Dir(path) {
		return nil, fmt.Errorf("%w: %s", ErrRootPath, path)
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil && resolved == filepath.Dir(resolved) {
		return nil, fmt.Errorf("%w: %s links to %s", ErrRootPath, path, resolved)
	}
	if settings.MaxSize.Bytes <= 0 {
		return nil, fmt.Errorf("%w: %s: max size must be positive", ErrInvalid, path)
	}
	if settings.DiskSize.Bytes < settings.MaxSize.Bytes {
		return nil, fmt.Errorf("%w: %s: disk size %s is smaller than max size %s",
			ErrInvalid, path, settings.DiskSize, settings.MaxSize)
	}
	if settings.ScanInterval <= 0 {
		return nil, fmt.Errorf("%w: %s: scan interval must be positive", ErrInvalid, path)
	}

	if deps.Scanner == nil || deps.Remover == nil {
		osFs := afero.NewOsFs()
		if deps.Scanner == nil {
			deps.Scanner = scanner.New(osFs, deps.Logger)
		}
		if deps.Remover == nil {
			deps.Remover = osFs
		}
	}

	logger := logging.NewComponentLogger(deps.Logger, "watch")
	return &Directory{
		path:     path,
		maxSize:  settings.MaxSize,
		diskSize: settings.DiskSize,
		interval: settings.ScanInterval,
		scanner:  deps.Scanner,
		remover:  deps.Remover,
		logger:   logger.With(logging.String(logging.FieldDirectory, path)),
	}, nil
}

// Path returns the absolute directory path.
func (d *Directory) Path() string { return d.path }

// MaxSize returns the configured ceiling.
func (d *Directory) MaxSize() sizeunit.Size { return d.maxSize }

// DiskSize returns the configured capacity.
func (d *Directory) DiskSize() sizeunit.Size { return d.diskSize }

// GrowthThreshold is the size halfway between the ceiling and the capacity.
func (d *Directory) GrowthThreshold() int64 {
	return d.maxSize.Bytes + d.halfBand()
}

func (d *Directory) halfBand() int64 {
	return (d.diskSize.Bytes - d.maxSize.Bytes) / 2
}

// ShouldRescan reports whether the directory was never scanned or its scan
// interval has elapsed.
func (d *Directory) ShouldRescan(now time.Time) bool {
	if d.inv == nil {
		return true
	}
	return !now.Before(d.lastScanAt.Add(d.interval))
}

// Rescan replaces the inventory with a fresh walk of the directory. On error
// the previous inventory is kept.
func (d *Directory) Rescan(ctx context.Context, now time.Time) error {
	logger := logging.WithContext(ctx, d.logger)
	started := time.Now()

	inv, stats, err := d.scanner.Scan(ctx, d.path)
	if err != nil {
		return fmt.Errorf("scan %s: %w", d.path, err)
	}

	d.inv = inv
	d.lastScanAt = now
	d.lastStats = stats

	logger.Info("disk space used",
		logging.String("used", sizeunit.Format(inv.TotalSize(), d.maxSize.Unit)),
		logging.String("max", d.maxSize.String()),
		logging.Int("files", stats.Files),
		logging.Int("skipped", stats.Skipped),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// NeedsCleanup reports whether the last scan found the directory over its
// ceiling.
func (d *Directory) NeedsCleanup() bool {
	return d.inv != nil && d.inv.TotalSize() > d.maxSize.Bytes
}

// Cleanup deletes the oldest files until the directory is at or below its
// ceiling. Deletion failures are reported, never returned as errors.
func (d *Directory) Cleanup(ctx context.Context) (inventory.EvictionReport, error) {
	if d.inv == nil {
		return inventory.EvictionReport{}, ErrNotScanned
	}
	logger := logging.WithContext(ctx, d.logger)

	if !d.NeedsCleanup() {
		return inventory.EvictionReport{}, nil
	}
	logger.Info("disk space used exceeds max size",
		logging.String("used", sizeunit.Format(d.inv.TotalSize(), d.maxSize.Unit)),
		logging.String("max", d.maxSize.String()),
	)

	report := d.inv.EvictOldestUntilUnder(d.maxSize.Bytes, d.remover)

	for _, path := range report.Deleted {
		logger.Debug("deleted file", logging.String(logging.FieldPath, path))
	}
	for _, path := range report.AlreadyGone {
		logging.WarnWithContext(logger, "file already deleted", "file_already_deleted",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldErrorHint, "another process removed the file before cleanup"),
		)
	}
	for _, failure := range report.Failures {
		logging.ErrorWithContext(logger, "failed to delete file", "deletion_failed",
			logging.String(logging.FieldPath, failure.Path),
			logging.Int64("size", failure.Size),
			logging.Error(failure.Err),
			logging.String(logging.FieldErrorHint, "check ownership and permissions of the file and its parent directory"),
		)
	}

	if report.Shortfall() {
		logging.Critical(ctx, logger, "less than half of the selected bytes could be freed; the disk will keep filling up",
			logging.Int64("target_bytes", report.TargetBytes),
			logging.Int64("bytes_freed", report.BytesFreed),
			logging.Int("failures", len(report.Failures)),
			logging.String(logging.FieldEventType, "reclamation_shortfall"),
		)
	} else {
		logger.Info("cleanup finished",
			logging.Int("files", report.Attempted),
			logging.String("freed", sizeunit.Human(report.BytesFreed)),
			logging.String("used", sizeunit.Format(d.inv.TotalSize(), d.maxSize.Unit)),
		)
	}
	return report, nil
}

// IsGrowthAlarming reports whether usage is past the midpoint between the
// ceiling and the capacity.
func (d *Directory) IsGrowthAlarming() bool {
	return d.inv != nil && d.inv.TotalSize() > d.GrowthThreshold()
}

// WarnGrowth logs the growth alarm for the current usage.
func (d *Directory) WarnGrowth(ctx context.Context) {
	logging.WarnWithContext(logging.WithContext(ctx, d.logger),
		"consider a lower max size; usage grew past half the headroom since the last check", "growth_alarm",
		logging.String("used", sizeunit.Format(d.TotalSize(), d.maxSize.Unit)),
		logging.Int64("half_band_bytes", d.halfBand()),
		logging.String(logging.FieldErrorHint, "lower max_size or raise disk_size for this directory"),
	)
}

// TotalSize returns the size recorded by the last scan less what cleanup has
// freed since. It is zero before the first scan.
func (d *Directory) TotalSize() int64 {
	if d.inv == nil {
		return 0
	}
	return d.inv.TotalSize()
}

// Snapshot captures the directory state for status output and metrics.
func (d *Directory) Snapshot() Snapshot {
	snap := Snapshot{
		Path:       d.path,
		MaxBytes:   d.maxSize.Bytes,
		DiskBytes:  d.diskSize.Bytes,
		LastScanAt: d.lastScanAt,
		LastStats:  d.lastStats,
	}
	if d.inv != nil {
		snap.Scanned = true
		snap.TotalBytes = d.inv.TotalSize()
		snap.Files = d.inv.Len()
		snap.Alarming = d.IsGrowthAlarming()
	}
	return snap
}
