package config

import (
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateDirectories()
}

func (c *Config) validateMonitor() error {
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: monitor.interval_seconds must be positive", ErrInvalid)
	}
	if c.Monitor.HistoryRetentionDays < 0 {
		return fmt.Errorf("%w: monitor.history_retention_days must be non-negative", ErrInvalid)
	}
	if c.Monitor.StateDir == "" {
		return fmt.Errorf("%w: monitor.state_dir must be set", ErrInvalid)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format must be one of console or json (got %q)", ErrInvalid, c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "critical", "fatal":
	default:
		return fmt.Errorf("%w: logging.level %q is not recognized", ErrInvalid, c.Logging.Level)
	}
	return nil
}

func (c *Config) validateDirectories() error {
	specs, err := c.Watched()
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if spec.Path == filepath.Dir(spec.Path) {
			return fmt.Errorf("%w: refusing to watch filesystem root %q", ErrInvalid, spec.Path)
		}
		if spec.MaxSize.Bytes <= 0 {
			return fmt.Errorf("%w: %s: max_size must be positive", ErrInvalid, spec.Path)
		}
		if spec.DiskSize.Bytes < spec.MaxSize.Bytes {
			return fmt.Errorf("%w: %s: disk_size %s is smaller than max_size %s", ErrInvalid, spec.Path, spec.DiskSize, spec.MaxSize)
		}
	}
	return nil
}
