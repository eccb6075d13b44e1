package config

import (
	"errors"
	"os"
	"path/filepath"

	"bidbot-engine/internal/errs"
)

// EnsureUserConfig writes the built-in defaults to <dataDir>/config.yml when no file exists yet.
func EnsureUserConfig(dataDir string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", errs.Wrapf(err, "stat %s", userPath)
	}

	cfg := Default()
	cfg.App.DataDir = dataDir
	if err := SaveAtomic(userPath, cfg); err != nil {
		return "", err
	}
	return userPath, nil
}

// Path helpers for the files that live in the data directory.

func (c Config) LedgerPath() string  { return filepath.Join(c.App.DataDir, "historial_propuestas.json") }
func (c Config) SessionPath() string { return filepath.Join(c.App.DataDir, "workana_session.json") }
func (c Config) AuditDBPath() string { return filepath.Join(c.App.DataDir, "bidbot.db") }
func (c Config) LogPath() string     { return filepath.Join(c.App.DataDir, "logs", "bot_execution.log") }

func (c Config) ProfilePath() string {
	if filepath.IsAbs(c.Browser.ProfileDir) {
		return c.Browser.ProfileDir
	}
	return filepath.Join(c.App.DataDir, c.Browser.ProfileDir)
}
