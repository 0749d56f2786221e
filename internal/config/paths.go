package config

import (
	"os"
	"path/filepath"
)

// UserDir returns ~/.qutest, creating it if it doesn't already exist.
func UserDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".qutest")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// SettingsPath returns the default location of the settings file.
func SettingsPath() (string, error) {
	dir, err := UserDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// HistoryDBPath returns the default location of the run-history ledger.
func HistoryDBPath() (string, error) {
	dir, err := UserDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}
