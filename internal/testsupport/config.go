package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"filescleaner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose state and log paths live in a per-test
// temp directory. No directories are watched unless an option adds one.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Monitor.StateDir = filepath.Join(base, "state")
	cfgVal.Monitor.IntervalSeconds = 60
	cfgVal.Logging.File = filepath.Join(base, "logs", "cleaner.log")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWatchedDir creates name under the temp directory and watches it with
// the given thresholds. Empty sizes inherit the monitor defaults.
func WithWatchedDir(name, maxSize, diskSize string) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir watched dir: %v", err)
		}
		if _, err := b.cfg.SetDirectory(dir, config.Directory{MaxSize: maxSize, DiskSize: diskSize}); err != nil {
			b.t.Fatalf("set directory: %v", err)
		}
	}
}

// WithDisabled turns the monitor off.
func WithDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Monitor.StateDir)
}

// WatchedDir returns the absolute path of a directory added by WithWatchedDir.
func WatchedDir(cfg *config.Config, name string) string {
	return filepath.Join(BaseDir(cfg), name)
}
