package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "interval_seconds = 60")
	requireContains(t, out, env.cfg.Monitor.StateDir)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigInitHonoursConfigFlag(t *testing.T) {
	target := filepath.Join(t.TempDir(), "fresh.toml")
	if _, _, err := runCLI(t, []string{"config", "init"}, target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config at --config path: %v", err)
	}
}

func TestUnknownConfigKeyFailsEveryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("enabled = true\nsleep = 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, []string{"status"}, path)
	if err == nil {
		t.Fatal("expected unknown key to fail")
	}
	if !strings.Contains(err.Error(), "sleep") {
		t.Fatalf("expected error to name the key, got %v", err)
	}
}
