package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.Monitor.DefaultMaxSize = strings.TrimSpace(c.Monitor.DefaultMaxSize)
	c.Monitor.DefaultDiskSize = strings.TrimSpace(c.Monitor.DefaultDiskSize)
	if c.Monitor.DefaultMaxSize == "" {
		c.Monitor.DefaultMaxSize = defaultMaxSize
	}
	if c.Monitor.DefaultDiskSize == "" {
		c.Monitor.DefaultDiskSize = defaultDiskSize
	}
	c.Monitor.MetricsAddr = strings.TrimSpace(c.Monitor.MetricsAddr)

	var err error
	if c.Monitor.StateDir, err = expandPath(strings.TrimSpace(c.Monitor.StateDir)); err != nil {
		return fmt.Errorf("monitor.state_dir: %w", err)
	}
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	normalized := make(map[string]Directory, len(c.Directories))
	for key, entry := range c.Directories {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("%w: directory path is empty", ErrInvalid)
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("directories.%q: %w", key, err)
		}
		if _, dup := normalized[expanded]; dup {
			return fmt.Errorf("%w: directory %q is configured more than once", ErrInvalid, expanded)
		}
		normalized[expanded] = Directory{
			MaxSize:  strings.TrimSpace(entry.MaxSize),
			DiskSize: strings.TrimSpace(entry.DiskSize),
		}
	}
	c.Directories = normalized
	return nil
}
