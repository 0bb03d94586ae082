// Package config resolves filesystem paths and tuning for the tracker.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds the paths and timing knobs used across the process.
type Config struct {
	DataDir string

	PollInterval    time.Duration
	IdleThreshold   time.Duration
	SourceTimeout   time.Duration
	BrowserCooldown time.Duration
	PermissionPoll  time.Duration

	KeyringService string
	KeyringAccount string
}

// Default returns a Config rooted at the per-user config directory,
// honoring SPENDY_DATA_DIR and SPENDY_POLL_INTERVAL overrides.
func Default() Config {
	cfg := Config{
		DataDir:         dataDir(),
		PollInterval:    10 * time.Second,
		IdleThreshold:   5 * time.Minute,
		SourceTimeout:   5 * time.Second,
		BrowserCooldown: 60 * time.Second,
		PermissionPoll:  3 * time.Second,
		KeyringService:  "spendy",
		KeyringAccount:  "db-key",
	}

	if v := os.Getenv("SPENDY_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	return cfg
}

func dataDir() string {
	if dir := os.Getenv("SPENDY_DATA_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "spendy")
}

// DBPath returns the encrypted database file path.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "spendy.sqlite")
}
