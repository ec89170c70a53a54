package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"filescleaner/internal/sizeunit"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrInvalid marks configuration values that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Monitor contains polling loop and state settings.
type Monitor struct {
	IntervalSeconds      int    `toml:"interval_seconds"`
	DefaultMaxSize       string `toml:"default_max_size"`
	DefaultDiskSize      string `toml:"default_disk_size"`
	StateDir             string `toml:"state_dir"`
	MetricsAddr          string `toml:"metrics_addr"`
	HistoryRetentionDays int    `toml:"history_retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Directory holds the per-path overrides. Empty values inherit the monitor
// defaults.
type Directory struct {
	MaxSize  string `toml:"max_size,omitempty"`
	DiskSize string `toml:"disk_size,omitempty"`
}

// Config encapsulates all configuration values for filescleaner.
//
// Configuration sections:
//   - Enabled: whether `monitor` runs at all
//   - Monitor: scan interval, default thresholds, state directory, metrics
//   - Logging: log format, level, and file
//   - Directories: watched paths keyed by absolute path
type Config struct {
	Enabled     bool                 `toml:"enabled"`
	Monitor     Monitor              `toml:"monitor"`
	Logging     Logging              `toml:"logging"`
	Directories map[string]Directory `toml:"directories"`
}

// DirectorySpec is a watched directory with its thresholds resolved.
type DirectorySpec struct {
	Path     string
	MaxSize  sizeunit.Size
	DiskSize sizeunit.Size
}

// DefaultConfigPath returns the system-wide configuration location.
func DefaultConfigPath() string {
	return defaultConfigPath
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file yields
// the defaults with exists=false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := decodeStrict(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: unrecognized keys:\n%s", ErrInvalid, strict.String())
		}
		return err
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("filescleaner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultConfigPath); err == nil && !info.IsDir() {
		return defaultConfigPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultConfigPath, false, nil
}

// ScanInterval returns the rescan interval as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

// LockPath is the single-instance lock file for the monitor.
func (c *Config) LockPath() string {
	return filepath.Join(c.Monitor.StateDir, "filescleaner.lock")
}

// PIDPath is where the running monitor records its process ID.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Monitor.StateDir, "filescleaner.pid")
}

// LedgerPath is the SQLite database holding cleanup history.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Monitor.StateDir, "history.db")
}

// EnsureDirectories creates the state directory used by the monitor.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Monitor.StateDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Monitor.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory %q: %w", c.Monitor.StateDir, err)
	}
	return nil
}

// Watched resolves every configured directory against the monitor
// defaults, sorted by path.
func (c *Config) Watched() ([]DirectorySpec, error) {
	defaultMax, err := sizeunit.Parse(c.Monitor.DefaultMaxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: monitor.default_max_size: %v", ErrInvalid, err)
	}
	defaultDisk, err := sizeunit.Parse(c.Monitor.DefaultDiskSize)
	if err != nil {
		return nil, fmt.Errorf("%w: monitor.default_disk_size: %v", ErrInvalid, err)
	}

	paths := make([]string, 0, len(c.Directories))
	for path := range c.Directories {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	specs := make([]DirectorySpec, 0, len(paths))
	for _, path := range paths {
		entry := c.Directories[path]
		spec := DirectorySpec{Path: path, MaxSize: defaultMax, DiskSize: defaultDisk}
		if strings.TrimSpace(entry.MaxSize) != "" {
			if spec.MaxSize, err = sizeunit.Parse(entry.MaxSize); err != nil {
				return nil, fmt.Errorf("%w: directories.%q.max_size: %v", ErrInvalid, path, err)
			}
		}
		if strings.TrimSpace(entry.DiskSize) != "" {
			if spec.DiskSize, err = sizeunit.Parse(entry.DiskSize); err != nil {
				return nil, fmt.Errorf("%w: directories.%q.disk_size: %v", ErrInvalid, path, err)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// SetDirectory adds or replaces a watched directory. The path is expanded to
// an absolute path first; the expanded path is returned.
func (c *Config) SetDirectory(path string, entry Directory) (string, error) {
	expanded, err := expandPath(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	if expanded == "" {
		return "", fmt.Errorf("%w: directory path is empty", ErrInvalid)
	}
	if c.Directories == nil {
		c.Directories = make(map[string]Directory)
	}
	c.Directories[expanded] = Directory{
		MaxSize:  strings.TrimSpace(entry.MaxSize),
		DiskSize: strings.TrimSpace(entry.DiskSize),
	}
	return expanded, nil
}

// RemoveDirectory drops a watched directory and reports whether it existed.
func (c *Config) RemoveDirectory(path string) (string, bool, error) {
	expanded, err := expandPath(strings.TrimSpace(path))
	if err != nil {
		return "", false, err
	}
	if _, ok := c.Directories[expanded]; !ok {
		return expanded, false, nil
	}
	delete(c.Directories, expanded)
	return expanded, true, nil
}

// Save writes the configuration to path, replacing it atomically.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".filescleaner-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
