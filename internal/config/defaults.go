package config

const (
	defaultConfigPath           = "/etc/filescleaner/config.toml"
	defaultIntervalSeconds      = 1800
	defaultMaxSize              = "100G"
	defaultDiskSize             = "200G"
	defaultStateDir             = "/var/lib/filescleaner"
	defaultHistoryRetentionDays = 90
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogFile              = "/var/log/filescleaner/cleaner.log"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Enabled: true,
		Monitor: Monitor{
			IntervalSeconds:      defaultIntervalSeconds,
			DefaultMaxSize:       defaultMaxSize,
			DefaultDiskSize:      defaultDiskSize,
			StateDir:             defaultStateDir,
			HistoryRetentionDays: defaultHistoryRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			File:   defaultLogFile,
		},
		Directories: map[string]Directory{},
	}
}
