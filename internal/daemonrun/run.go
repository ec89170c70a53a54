// Package daemonrun wires configuration, logging, the instance lock, the
// ledger, and metrics around the monitor loop for `filescleaner monitor`.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"filescleaner/internal/config"
	"filescleaner/internal/ledger"
	"filescleaner/internal/logging"
	"filescleaner/internal/metrics"
	"filescleaner/internal/monitor"
)

// Options configures monitor process runtime behavior.
type Options struct {
	LogLevel    string
	Interactive bool
	// Logger replaces the logger built from configuration.
	Logger *slog.Logger
}

// Run starts the monitor and blocks until SIGINT, SIGTERM, or cmdCtx ends.
// A disabled configuration or an empty directory list returns nil at once.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewFromConfig(cfg, opts.Interactive, opts.LogLevel)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}

	if !cfg.Enabled {
		logger.Info("monitoring is disabled in the configuration; exiting")
		return nil
	}

	dirs, err := monitor.BuildDirectories(cfg, nil, logger)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		logger.Info("no directories to monitor; exiting")
		return nil
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock, err := monitor.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release monitor lock", logging.Error(err))
		}
	}()

	pidPath := cfg.PIDPath()
	if err := monitor.WritePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var history monitor.Ledger
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		logging.WarnWithContext(logger, "cleanup history unavailable", "ledger_open_failed",
			logging.String("path", cfg.LedgerPath()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cleanup continues without history; check the state directory"),
		)
	} else {
		defer store.Close()
		history = store
	}

	collectors := metrics.New()
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := collectors.Serve(signalCtx, cfg.Monitor.MetricsAddr, logger); err != nil {
			logging.ErrorWithContext(logger, "metrics listener failed", "metrics_failed",
				logging.String("addr", cfg.Monitor.MetricsAddr),
				logging.Error(err),
			)
		}
	}()
	defer func() {
		cancel()
		<-metricsDone
	}()

	mon, err := monitor.New(cfg, dirs, monitor.Options{
		Logger:  logger,
		Ledger:  history,
		Metrics: collectors,
	})
	if err != nil {
		return err
	}

	logger.Info("filescleaner monitor started",
		logging.String("session_id", uuid.NewString()),
		logging.Int("pid", os.Getpid()),
		logging.String("lock", lock.Path()),
		logging.Int("directories", len(dirs)),
	)
	return mon.Run(signalCtx)
}
