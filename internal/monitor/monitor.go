package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"filescleaner/internal/config"
	"filescleaner/internal/inventory"
	"filescleaner/internal/logging"
	"filescleaner/internal/metrics"
	"filescleaner/internal/preflight"
	"filescleaner/internal/watch"
)

// Ledger stores cleanup history. *ledger.Store satisfies it.
type Ledger interface {
	RecordCleanup(ctx context.Context, directory string, startedAt time.Time, totalBefore int64, report inventory.EvictionReport) (int64, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Options carries the optional collaborators of a Monitor.
type Options struct {
	Logger  *slog.Logger
	Ledger  Ledger
	Metrics *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
	// Available reports free bytes on the filesystem holding a directory.
	// Defaults to preflight.FilesystemUsage.
	Available func(path string) (uint64, error)
}

// Cleanup is the outcome of one directory's cleanup pass.
type Cleanup struct {
	Directory   string
	TotalBefore int64
	Report      inventory.EvictionReport
	LedgerID    int64
}

// CycleResult summarises one pass over every directory.
type CycleResult struct {
	ID           string
	StartedAt    time.Time
	Rescanned    []string
	ScanErrors   map[string]error
	Cleanups     []Cleanup
	GrowthAlarms []string
}

// Monitor drives a fixed set of directories.
type Monitor struct {
	dirs      []*watch.Directory
	interval  time.Duration
	retention time.Duration

	logger    *slog.Logger
	ledger    Ledger
	metrics   *metrics.Metrics
	now       func() time.Time
	available func(string) (uint64, error)

	lastPrune time.Time
}

// New returns a monitor for dirs using the interval and history retention
// from cfg.
func New(cfg *config.Config, dirs []*watch.Directory, opts Options) (*Monitor, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	interval := cfg.ScanInterval()
	if interval <= 0 {
		return nil, fmt.Errorf("%w: scan interval must be positive", config.ErrInvalid)
	}
	m := &Monitor{
		dirs:      dirs,
		interval:  interval,
		retention: time.Duration(cfg.Monitor.HistoryRetentionDays) * 24 * time.Hour,
		logger:    logging.NewComponentLogger(opts.Logger, "monitor"),
		ledger:    opts.Ledger,
		metrics:   opts.Metrics,
		now:       opts.Now,
		available: opts.Available,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.available == nil {
		m.available = func(path string) (uint64, error) {
			usage, err := preflight.FilesystemUsage(path)
			return usage.Available, err
		}
	}
	return m, nil
}

// Interval returns the time between cycle starts.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Run executes cycles until ctx is cancelled. A cycle that takes longer than
// the interval is logged and the next one starts immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		logging.Int("directories", len(m.dirs)),
		logging.Duration("interval", m.interval),
	)

	for {
		started := m.now()
		m.RunCycle(ctx, started)
		elapsed := m.now().Sub(started)
		overran := elapsed > m.interval
		m.metrics.ObserveCycle(elapsed, overran)

		if ctx.Err() != nil {
			m.logger.Info("monitor stopping")
			return nil
		}

		if overran {
			logging.ErrorWithContext(m.logger, "cycle overran interval", "cycle_overrun",
				logging.Duration("elapsed", elapsed),
				logging.Duration("interval", m.interval),
				logging.String(logging.FieldErrorHint, "raise monitor.interval_seconds or watch fewer files"),
			)
			continue
		}

		wait := m.interval - elapsed
		m.logger.Info("sleeping", logging.Duration("duration", wait.Round(time.Second)))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("monitor stopping")
			return nil
		case <-timer.C:
		}
	}
}

// RunCycle performs one rescan pass, one cleanup pass, and a final usage
// pass. It never returns early for a single directory's failure.
func (m *Monitor) RunCycle(ctx context.Context, now time.Time) CycleResult {
	result := CycleResult{
		ID:         uuid.NewString(),
		StartedAt:  now,
		ScanErrors: make(map[string]error),
	}
	ctx = logging.WithCycleID(ctx, result.ID)
	logger := logging.WithContext(ctx, m.logger)

	m.prune(ctx, now)
	logger.Info("checking directory sizes", logging.Int("directories", len(m.dirs)))

	for _, dir := range m.dirs {
		if ctx.Err() != nil {
			return result
		}
		m.checkUsage(ctx, dir, now, &result)
	}

	for _, dir := range m.dirs {
		if ctx.Err() != nil {
			return result
		}
		if dir.NeedsCleanup() {
			m.cleanup(ctx, dir, &result)
		}
	}

	for _, dir := range m.dirs {
		if ctx.Err() != nil {
			return result
		}
		m.checkUsage(ctx, dir, m.now(), &result)
	}

	logger.Info("end run",
		logging.Int("rescanned", len(result.Rescanned)),
		logging.Int("cleanups", len(result.Cleanups)),
		logging.Int("growth_alarms", len(result.GrowthAlarms)),
	)
	return result
}

func (m *Monitor) checkUsage(ctx context.Context, dir *watch.Directory, now time.Time, result *CycleResult) {
	if _, failed := result.ScanErrors[dir.Path()]; failed || !dir.ShouldRescan(now) {
		return
	}
	logger := logging.WithContext(ctx, m.logger)

	if err := dir.Rescan(ctx, now); err != nil {
		if ctx.Err() != nil {
			return
		}
		result.ScanErrors[dir.Path()] = err
		m.metrics.ScanFailed(dir.Path())
		logging.ErrorWithContext(logger, "rescan failed", "scan_failed",
			logging.String(logging.FieldDirectory, dir.Path()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the directory exists and is readable"),
		)
		return
	}
	result.Rescanned = append(result.Rescanned, dir.Path())
	m.publish(dir)

	if dir.IsGrowthAlarming() {
		dir.WarnGrowth(ctx)
		m.metrics.GrowthAlarm(dir.Path())
		result.GrowthAlarms = append(result.GrowthAlarms, dir.Path())
	}
}

func (m *Monitor) cleanup(ctx context.Context, dir *watch.Directory, result *CycleResult) {
	logger := logging.WithContext(ctx, m.logger)
	startedAt := m.now()
	before := dir.TotalSize()

	report, err := dir.Cleanup(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "cleanup failed", "cleanup_failed",
			logging.String(logging.FieldDirectory, dir.Path()),
			logging.Error(err),
		)
		return
	}

	entry := Cleanup{Directory: dir.Path(), TotalBefore: before, Report: report}
	m.metrics.ObserveCleanup(dir.Path(), report)
	m.publish(dir)

	if m.ledger != nil && !report.Empty() {
		id, err := m.ledger.RecordCleanup(ctx, dir.Path(), startedAt, before, report)
		if err != nil {
			logging.WarnWithContext(logger, "failed to record cleanup history", "ledger_write_failed",
				logging.String(logging.FieldDirectory, dir.Path()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state directory; cleanup itself succeeded"),
			)
		}
		entry.LedgerID = id
	}
	result.Cleanups = append(result.Cleanups, entry)
}

func (m *Monitor) publish(dir *watch.Directory) {
	if m.metrics == nil {
		return
	}
	m.metrics.ObserveDirectory(dir.Snapshot())
	if available, err := m.available(dir.Path()); err == nil {
		m.metrics.ObserveAvailable(dir.Path(), available)
	}
}

// prune drops expired ledger history at most once a day.
func (m *Monitor) prune(ctx context.Context, now time.Time) {
	if m.ledger == nil || m.retention <= 0 {
		return
	}
	if !m.lastPrune.IsZero() && now.Sub(m.lastPrune) < 24*time.Hour {
		return
	}
	m.lastPrune = now

	removed, err := m.ledger.Prune(ctx, now.Add(-m.retention))
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "failed to prune cleanup history", "ledger_prune_failed",
			logging.Error(err),
		)
		return
	}
	if removed > 0 {
		m.logger.Debug("pruned cleanup history", logging.Int64("removed", removed))
	}
}
