package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ClementDreptin/OpenNeighborhood/xbdm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
console = "192.168.1.20"
port = 731
connect_timeout = "5s"
idle_timeout = "1m"
log_level = "debug"
history_file = "/tmp/neighborhood-history"
`)

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Config{
		Console:        "192.168.1.20",
		Port:           731,
		ConnectTimeout: 5 * time.Second,
		IdleTimeout:    time.Minute,
		LogLevel:       "debug",
		HistoryFile:    "/tmp/neighborhood-history",
	}
	if cfg != want {
		t.Errorf("cfg = %+v, want %+v", cfg, want)
	}
}

// TestLoadConfigPartial verifies keys missing from the file keep their
// defaults.
func TestLoadConfigPartial(t *testing.T) {
	path := writeConfig(t, `console = "10.0.0.2"`)

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Console != "10.0.0.2" {
		t.Errorf("Console = %q", cfg.Console)
	}
	if cfg.Port != xbdm.Port || cfg.IdleTimeout != xbdm.IdleTimeout || cfg.LogLevel != "warn" {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := loadConfig(path, false)
	if err != nil {
		t.Fatalf("optional missing file: unexpected error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}

	if _, err := loadConfig(path, true); err == nil {
		t.Error("required missing file should fail")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "console = \"10.0.0.2\"\nspeed = 3\n", "unknown keys: speed"},
		{"bad duration", `idle_timeout = "soon"`, "idle_timeout"},
		{"bad connect timeout", `connect_timeout = "3"`, "connect_timeout"},
		{"port range", `port = 70000`, "out of range"},
		{"syntax", `console = `, "load config"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tc.content), true)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestConfigDirHonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got, want := defaultConfigPath(), filepath.Join(dir, "neighborhood", "config.toml"); got != want {
		t.Errorf("defaultConfigPath = %q, want %q", got, want)
	}
	if got, want := DefaultConfig().HistoryFile, filepath.Join(dir, "neighborhood", "history"); got != want {
		t.Errorf("HistoryFile = %q, want %q", got, want)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := expandHome("~/hist"); got != filepath.Join(home, "hist") {
		t.Errorf("expandHome(~/hist) = %q", got)
	}
	if got := expandHome("/abs/hist"); got != "/abs/hist" {
		t.Errorf("expandHome(/abs/hist) = %q", got)
	}
}
