package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"filescleaner/internal/inventory"
	"filescleaner/internal/logging"
	"filescleaner/internal/metrics"
	"filescleaner/internal/testsupport"
)

type fakeLedger struct {
	recorded  []string
	reports   []inventory.EvictionReport
	pruned    []time.Time
	recordErr error
}

func (f *fakeLedger) RecordCleanup(_ context.Context, dir string, _ time.Time, _ int64, report inventory.EvictionReport) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.recorded = append(f.recorded, dir)
	f.reports = append(f.reports, report)
	return int64(len(f.recorded)), nil
}

func (f *fakeLedger) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	f.pruned = append(f.pruned, olderThan)
	return 0, nil
}

func noDiskStats(string) (uint64, error) { return 0, errors.New("unavailable") }

func TestRunCycleCleansOldestFilesAndRecordsLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchedDir("captures", "3000", "6000"))
	watched := testsupport.WatchedDir(cfg, "captures")
	paths := testsupport.WriteFiles(t, watched, 1024, 1025, 1028, 1033, 1040)

	dirs, err := BuildDirectories(cfg, nil, logging.NewNop())
	require.NoError(t, err)
	require.Len(t, dirs, 1)

	store := testsupport.MustOpenLedger(t, cfg)
	m, err := New(cfg, dirs, Options{Logger: logging.NewNop(), Ledger: store, Available: noDiskStats})
	require.NoError(t, err)

	result := m.RunCycle(context.Background(), time.Now())
	require.NotEmpty(t, result.ID)
	require.Equal(t, []string{watched}, result.Rescanned)
	require.Empty(t, result.ScanErrors)
	require.Len(t, result.Cleanups, 1)

	cleanup := result.Cleanups[0]
	require.Equal(t, int64(5150), cleanup.TotalBefore)
	require.Equal(t, 3, cleanup.Report.Attempted)
	require.Equal(t, int64(3077), cleanup.Report.BytesFreed)
	require.Positive(t, cleanup.LedgerID)

	for _, gone := range paths[:3] {
		_, err := os.Stat(gone)
		require.True(t, errors.Is(err, os.ErrNotExist), "%s should be deleted", gone)
	}
	for _, kept := range paths[3:] {
		_, err := os.Stat(kept)
		require.NoError(t, err)
	}

	records, err := store.Recent(context.Background(), watched, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(2073), records[0].TotalAfter)
}

func TestRunCycleUnderThresholdDoesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchedDir("quiet", "1M", "2M"))
	testsupport.WriteFiles(t, testsupport.WatchedDir(cfg, "quiet"), 10, 20)

	dirs, err := BuildDirectories(cfg, nil, nil)
	require.NoError(t, err)
	ledger := &fakeLedger{}
	m, err := New(cfg, dirs, Options{Ledger: ledger, Available: noDiskStats})
	require.NoError(t, err)

	result := m.RunCycle(context.Background(), time.Now())
	require.Len(t, result.Rescanned, 1)
	require.Empty(t, result.Cleanups)
	require.Empty(t, ledger.recorded)
	require.Empty(t, result.GrowthAlarms)
}

func TestRunCycleContinuesPastMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithWatchedDir("alpha", "1k", "2k"),
		testsupport.WithWatchedDir("beta", "1k", "2k"),
	)
	alpha := testsupport.WatchedDir(cfg, "alpha")
	beta := testsupport.WatchedDir(cfg, "beta")
	testsupport.WriteFiles(t, beta, 800, 800)
	require.NoError(t, os.RemoveAll(alpha))

	dirs, err := BuildDirectories(cfg, nil, nil)
	require.NoError(t, err)
	m, err := New(cfg, dirs, Options{Metrics: metrics.New(), Available: noDiskStats})
	require.NoError(t, err)

	result := m.RunCycle(context.Background(), time.Now())
	require.Contains(t, result.ScanErrors, alpha)
	require.Equal(t, []string{beta}, result.Rescanned)
	require.Len(t, result.Cleanups, 1)
	require.Equal(t, beta, result.Cleanups[0].Directory)
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.ScanErrorsTotal.WithLabelValues(alpha)))
}

func TestRunCycleRaisesGrowthAlarm(t *testing.T) {
	// max 1000, disk 1200: alarms above 1100 bytes. The cleanup brings the
	// directory down, but the alarm from the first scan stands.
	cfg := testsupport.NewConfig(t, testsupport.WithWatchedDir("busy", "1000", "1200"))
	testsupport.WriteFiles(t, testsupport.WatchedDir(cfg, "busy"), 600, 600)

	dirs, err := BuildDirectories(cfg, nil, nil)
	require.NoError(t, err)
	m, err := New(cfg, dirs, Options{Metrics: metrics.New(), Available: noDiskStats})
	require.NoError(t, err)

	result := m.RunCycle(context.Background(), time.Now())
	require.Equal(t, []string{testsupport.WatchedDir(cfg, "busy")}, result.GrowthAlarms)
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.GrowthAlarmsTotal.WithLabelValues(testsupport.WatchedDir(cfg, "busy"))))
	require.Len(t, result.Cleanups, 1)
}

func TestRunCycleSkipsRescanWithinInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchedDir("steady", "1M", "2M"))
	dirs, err := BuildDirectories(cfg, nil, nil)
	require.NoError(t, err)
	m, err := New(cfg, dirs, Options{Available: noDiskStats})
	require.NoError(t, err)

	now := time.Now()
	require.Len(t, m.RunCycle(context.Background(), now).Rescanned, 1)
	require.Empty(t, m.RunCycle(context.Background(), now.Add(30*time.Second)).Rescanned)
	require.Len(t, m.RunCycle(context.Background(), now.Add(time.Minute)).Rescanned, 1)
}

func TestLedgerFailureDoesNotStopCleanup(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchedDir("captures", "100", "200"))
	paths := testsupport.WriteFiles(t, testsupport.WatchedDir(cfg, "captures"), 100, 100)

	dirs, err := BuildDirectories(cfg, nil, nil)
	require.NoError(t, err)
	m, err := New(cfg, dirs, Options{Ledger: &fakeLedger{recordErr: errors.New("disk I/O error")}, Available: noDiskStats})
	require.NoError(t, err)

	result := m.RunCycle(context.Background(), time.Now())
	require.Len(t, result.Cleanups, 1)
	require.Zero(t, result.Cleanups[0].LedgerID)
	_, err = os.Stat(paths[0])
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPruneRunsDaily(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ledger := &fakeLedger{}
	m, err := New(cfg, nil, Options{Ledger: ledger})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m.RunCycle(context.Background(), now)
	m.RunCycle(context.Background(), now.Add(time.Hour))
	m.RunCycle(context.Background(), now.Add(25*time.Hour))

	require.Len(t, ledger.pruned, 2)
	require.Equal(t, now.AddDate(0, 0, -cfg.Monitor.HistoryRetentionDays), ledger.pruned[0])
}

func TestRunReturnsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchedDir("captures", "1M", "2M"))
	dirs, err := BuildDirectories(cfg, nil, nil)
	require.NoError(t, err)
	m, err := New(cfg, dirs, Options{Available: noDiskStats})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunContinuesImmediatelyAfterOverrun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Monitor.IntervalSeconds = 1

	// Every call to the clock advances two seconds, so each cycle overruns.
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := func() time.Time {
		calls++
		if calls > 20 {
			cancel()
		}
		current = current.Add(2 * time.Second)
		return current
	}

	m, err := New(cfg, nil, Options{Now: clock, Metrics: metrics.New()})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("overrunning cycles should not sleep")
	}
	require.GreaterOrEqual(t, testutil.ToFloat64(m.metrics.CycleOverrunsTotal), 5.0)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil, Options{})
	require.Error(t, err)
}

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "filescleaner.lock")

	first, err := AcquireLock(path)
	require.NoError(t, err)

	locked, err := IsLocked(path)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = AcquireLock(path)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Release())
	locked, err = IsLocked(path)
	require.NoError(t, err)
	require.False(t, locked)

	second, err := AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filescleaner.pid")
	require.NoError(t, WritePIDFile(path))

	pid, err := ReadPIDFile(path)
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)

	locked, err := IsLocked(filepath.Join(t.TempDir(), "missing.lock"))
	require.NoError(t, err)
	require.False(t, locked)
}
