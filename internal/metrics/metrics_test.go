package metrics

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"filescleaner/internal/inventory"
	"filescleaner/internal/watch"
)

func TestObserveDirectory(t *testing.T) {
	m := New()
	m.ObserveDirectory(watch.Snapshot{Path: "/srv/a", TotalBytes: 2048, Files: 3, MaxBytes: 4096})

	require.Equal(t, 2048.0, testutil.ToFloat64(m.DirectoryBytes.WithLabelValues("/srv/a")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.DirectoryFiles.WithLabelValues("/srv/a")))
	require.Equal(t, 4096.0, testutil.ToFloat64(m.DirectoryMaxBytes.WithLabelValues("/srv/a")))
}

func TestObserveCleanupCountsShortfall(t *testing.T) {
	m := New()
	m.ObserveCleanup("/srv/a", inventory.EvictionReport{
		Attempted:   2,
		TargetBytes: 2000,
		BytesFreed:  500,
		Failures:    []inventory.DeletionFailure{{Path: "/srv/a/x", Size: 1500, Err: fs.ErrPermission}},
	})
	m.ObserveCleanup("/srv/a", inventory.EvictionReport{})

	require.Equal(t, 500.0, testutil.ToFloat64(m.BytesFreedTotal.WithLabelValues("/srv/a")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DeletionFailuresTotal.WithLabelValues("/srv/a")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ShortfallsTotal.WithLabelValues("/srv/a")))
}

func TestObserveCycleOverrun(t *testing.T) {
	m := New()
	m.ObserveCycle(2*time.Second, false)
	m.ObserveCycle(time.Hour, true)

	require.Equal(t, 1.0, testutil.ToFloat64(m.CycleOverrunsTotal))
	require.Equal(t, 1, testutil.CollectAndCount(m.CycleDuration))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveDirectory(watch.Snapshot{Path: "/srv/a"})
	m.ObserveCleanup("/srv/a", inventory.EvictionReport{Attempted: 1})
	m.GrowthAlarm("/srv/a")
	m.ScanFailed("/srv/a")
	m.ObserveCycle(time.Second, true)
	m.ObserveAvailable("/srv/a", 1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.GrowthAlarm("/srv/a")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), `filescleaner_growth_alarms_total{directory="/srv/a"} 1`))

	health, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0", nil) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeEmptyAddrIsNoop(t *testing.T) {
	require.NoError(t, New().Serve(context.Background(), "", nil))
}

func TestServeReportsListenError(t *testing.T) {
	err := New().Serve(context.Background(), "not-an-address", nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, context.Canceled))
}
