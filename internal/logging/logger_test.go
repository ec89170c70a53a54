package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filescleaner/internal/config"
	"filescleaner/internal/logging"
)

func TestConsoleLoggerWritesComponentAndAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "watch").Info("scan complete",
		logging.String(logging.FieldDirectory, "/srv/recordings"),
		logging.Int64("total_bytes", 2073),
	)
	logger.Debug("hidden")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"INFO watch: scan complete", "directory=/srv/recordings", "total_bytes=2073"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line should be filtered at info level: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestCriticalLevelLabels(t *testing.T) {
	dir := t.TempDir()
	consolePath := filepath.Join(dir, "console.log")
	jsonPath := filepath.Join(dir, "json.log")

	consoleLogger, err := logging.New(logging.Options{Format: "console", Level: "critical", OutputPaths: []string{consolePath}})
	if err != nil {
		t.Fatalf("New console: %v", err)
	}
	jsonLogger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{jsonPath}})
	if err != nil {
		t.Fatalf("New json: %v", err)
	}

	consoleLogger.Error("filtered error")
	logging.Critical(context.Background(), consoleLogger, "disk filling up")
	logging.Critical(context.Background(), jsonLogger, "disk filling up", logging.Int64("bytes_freed", 1))

	console, _ := os.ReadFile(consolePath)
	if strings.Contains(string(console), "filtered error") {
		t.Fatalf("error should be below critical threshold: %q", console)
	}
	if !strings.Contains(string(console), "CRITICAL disk filling up") {
		t.Fatalf("missing critical line: %q", console)
	}

	raw, _ := os.ReadFile(jsonPath)
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, raw)
	}
	if entry["level"] != "critical" {
		t.Fatalf("level = %v, want critical", entry["level"])
	}
	if entry["msg"] != "disk filling up" {
		t.Fatalf("msg = %v", entry["msg"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesToConfiguredFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "nested", "cleaner.log")

	logger, err := logging.NewFromConfig(&cfg, false, "")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")

	if _, err := os.Stat(cfg.Logging.File); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestWithContextAddsCycleID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "cycle.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithCycleID(context.Background(), "abc123")
	logging.WithContext(ctx, logger).Info("cycle")

	content, _ := os.ReadFile(logPath)
	if !strings.Contains(string(content), "cycle_id=abc123") {
		t.Fatalf("expected cycle id in %q", content)
	}
}

func TestJSONLoggerAddsCycleIDOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "cycle.json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithCycleID(context.Background(), "c-42")

	logging.Critical(ctx, logger, "reclamation shortfall", logging.String(logging.FieldDirectory, "/srv/recordings"))
	logging.WithContext(ctx, logger).InfoContext(ctx, "end run")
	logger.Info("no cycle")

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), raw)
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first[logging.FieldCycleID] != "c-42" || first[logging.FieldDirectory] != "/srv/recordings" {
		t.Fatalf("unexpected fields: %v", first)
	}
	if _, ok := first["ts"]; !ok {
		t.Fatalf("missing ts in %v", first)
	}
	if strings.Count(lines[1], `"cycle_id"`) != 1 {
		t.Fatalf("cycle_id should appear once: %q", lines[1])
	}
	if strings.Contains(lines[2], "cycle_id") {
		t.Fatalf("unexpected cycle_id: %q", lines[2])
	}
}
