// Package metrics exposes directory usage and cleanup outcomes to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filescleaner/internal/inventory"
	"filescleaner/internal/logging"
	"filescleaner/internal/watch"
)

const namespace = "filescleaner"

var directoryLabel = []string{"directory"}

// Metrics holds the collectors for one monitor process. Collectors are
// registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	DirectoryBytes        *prometheus.GaugeVec
	DirectoryFiles        *prometheus.GaugeVec
	DirectoryMaxBytes     *prometheus.GaugeVec
	FilesystemAvailable   *prometheus.GaugeVec
	BytesFreedTotal       *prometheus.CounterVec
	DeletionFailuresTotal *prometheus.CounterVec
	ShortfallsTotal       *prometheus.CounterVec
	GrowthAlarmsTotal     *prometheus.CounterVec
	ScanErrorsTotal       *prometheus.CounterVec
	CycleDuration         prometheus.Histogram
	CycleOverrunsTotal    prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DirectoryBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_bytes",
			Help:      "Bytes used by regular files in the directory as of the last scan, less bytes freed since.",
		}, directoryLabel),
		DirectoryFiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_files",
			Help:      "Regular files tracked in the directory.",
		}, directoryLabel),
		DirectoryMaxBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_max_bytes",
			Help:      "Configured ceiling for the directory.",
		}, directoryLabel),
		FilesystemAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filesystem_available_bytes",
			Help:      "Bytes available to unprivileged users on the filesystem holding the directory.",
		}, directoryLabel),
		BytesFreedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_freed_total",
			Help:      "Bytes reclaimed by cleanup, including files that were already gone.",
		}, directoryLabel),
		DeletionFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletion_failures_total",
			Help:      "Files cleanup selected but could not delete.",
		}, directoryLabel),
		ShortfallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclamation_shortfalls_total",
			Help:      "Cleanup passes that freed less than half of the bytes they selected.",
		}, directoryLabel),
		GrowthAlarmsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "growth_alarms_total",
			Help:      "Scans that found usage past the midpoint between max size and disk size.",
		}, directoryLabel),
		ScanErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Rescans that failed to read the directory root.",
		}, directoryLabel),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one monitor cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		CycleOverrunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_overruns_total",
			Help:      "Cycles that took longer than the scan interval.",
		}),
	}

	m.registry.MustRegister(
		m.DirectoryBytes,
		m.DirectoryFiles,
		m.DirectoryMaxBytes,
		m.FilesystemAvailable,
		m.BytesFreedTotal,
		m.DeletionFailuresTotal,
		m.ShortfallsTotal,
		m.GrowthAlarmsTotal,
		m.ScanErrorsTotal,
		m.CycleDuration,
		m.CycleOverrunsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDirectory publishes the usage gauges for a directory.
func (m *Metrics) ObserveDirectory(snap watch.Snapshot) {
	if m == nil {
		return
	}
	m.DirectoryBytes.WithLabelValues(snap.Path).Set(float64(snap.TotalBytes))
	m.DirectoryFiles.WithLabelValues(snap.Path).Set(float64(snap.Files))
	m.DirectoryMaxBytes.WithLabelValues(snap.Path).Set(float64(snap.MaxBytes))
}

// ObserveAvailable publishes free space on the filesystem holding directory.
func (m *Metrics) ObserveAvailable(directory string, available uint64) {
	if m == nil {
		return
	}
	m.FilesystemAvailable.WithLabelValues(directory).Set(float64(available))
}

// ObserveCleanup counts the outcome of one cleanup pass.
func (m *Metrics) ObserveCleanup(directory string, report inventory.EvictionReport) {
	if m == nil || report.Empty() {
		return
	}
	m.BytesFreedTotal.WithLabelValues(directory).Add(float64(report.BytesFreed))
	m.DeletionFailuresTotal.WithLabelValues(directory).Add(float64(len(report.Failures)))
	if report.Shortfall() {
		m.ShortfallsTotal.WithLabelValues(directory).Inc()
	}
}

// GrowthAlarm counts one growth alarm for directory.
func (m *Metrics) GrowthAlarm(directory string) {
	if m == nil {
		return
	}
	m.GrowthAlarmsTotal.WithLabelValues(directory).Inc()
}

// ScanFailed counts one failed rescan for directory.
func (m *Metrics) ScanFailed(directory string) {
	if m == nil {
		return
	}
	m.ScanErrorsTotal.WithLabelValues(directory).Inc()
}

// ObserveCycle records a cycle's duration and whether it overran.
func (m *Metrics) ObserveCycle(elapsed time.Duration, overran bool) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(elapsed.Seconds())
	if overran {
		m.CycleOverrunsTotal.Inc()
	}
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve listens on addr until ctx is cancelled. An empty addr is a no-op.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "metrics")

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:      m.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logger.Info("metrics listener started", logging.String("addr", listener.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics listener: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listener: %w", err)
	}
}
