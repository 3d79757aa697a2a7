// =============================================================================
// config.go - Configuration File and Environment
// =============================================================================
//
// Settings are resolved in three layers, later layers winning:
//
//  1. Built-in defaults (port 730, 3s connect, 30s idle timeout).
//  2. The TOML file at $XDG_CONFIG_HOME/neighborhood/config.toml, or the
//     path given with --config.
//  3. Command-line flags. NEIGHBORHOOD_CONSOLE fills in the console address
//     when neither the file nor --console names one.
//
// Example file:
//
//	console = "192.168.1.20"
//	idle_timeout = "1m"
//	log_level = "debug"
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ClementDreptin/OpenNeighborhood/xbdm"
)

const (
	// EnvConsole names the console address when no flag or file sets it.
	EnvConsole = "NEIGHBORHOOD_CONSOLE"

	configDirName  = "neighborhood"
	configFileName = "config.toml"
	historyName    = "history"
)

// Config holds the resolved CLI settings.
type Config struct {
	Console        string
	Port           int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	LogLevel       string
	HistoryFile    string
}

// fileConfig mirrors the TOML file. Durations are Go duration strings.
type fileConfig struct {
	Console        string `toml:"console"`
	Port           int    `toml:"port"`
	ConnectTimeout string `toml:"connect_timeout"`
	IdleTimeout    string `toml:"idle_timeout"`
	LogLevel       string `toml:"log_level"`
	HistoryFile    string `toml:"history_file"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	cfg := Config{
		Port:           xbdm.Port,
		ConnectTimeout: xbdm.ConnectTimeout,
		IdleTimeout:    xbdm.IdleTimeout,
		LogLevel:       "warn",
	}
	if dir := configDir(); dir != "" {
		cfg.HistoryFile = filepath.Join(dir, historyName)
	}
	return cfg
}

// configDir returns $XDG_CONFIG_HOME/neighborhood, falling back to the
// platform config directory.
func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, configDirName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, configDirName)
	}
	return ""
}

// defaultConfigPath returns the config file looked up when --config is not
// given.
func defaultConfigPath() string {
	return filepath.Join(configDir(), configFileName)
}

// loadConfig reads path on top of the defaults. A missing file is only an
// error when required is set, i.e. the user named it explicitly.
func loadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("console") {
		cfg.Console = strings.TrimSpace(raw.Console)
	}

	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return Config{}, fmt.Errorf("load config %s: port %d out of range", path, raw.Port)
		}
		cfg.Port = raw.Port
	}

	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}

	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("history_file") {
		cfg.HistoryFile = expandHome(strings.TrimSpace(raw.HistoryFile))
	}

	return cfg, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
