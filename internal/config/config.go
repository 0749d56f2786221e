// Package config holds the tool's own settings (distinct from Target Info,
// which is negotiated over the wire — see internal/qsinfo). It follows the
// teacher's layered-merge pattern: a user-level file overridden by explicit
// CLI flags, serialized as YAML since the DSL scripts already pull in
// gopkg.in/yaml.v3.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the persisted shape of ~/.qutest/config.yaml.
type Settings struct {
	QSpyHost      string `yaml:"qspy_host"`
	QSpyUDPPort   int    `yaml:"qspy_udp_port"`
	QSpyTCPPort   int    `yaml:"qspy_tcp_port"`
	LocalUDPPort  int    `yaml:"local_udp_port"`
	TimeoutMillis int    `yaml:"timeout_millis"`
	LogDir        string `yaml:"log_dir,omitempty"`
	Opt           string `yaml:"opt,omitempty"`
}

// Defaults returns the built-in settings used when no config file exists,
// matching the link layer defaults from spec.md §4.3 (1000ms receive
// timeout, OS-chosen local port).
func Defaults() Settings {
	return Settings{
		QSpyHost:      "localhost",
		QSpyUDPPort:   7701,
		QSpyTCPPort:   6601,
		LocalUDPPort:  0,
		TimeoutMillis: 1000,
	}
}

// Manager owns the on-disk settings file and supports reloading it while the
// interactive loop (C9) is running.
type Manager struct {
	path     string
	current  Settings
	onChange func(Settings)
}

// NewManager loads settings from path, falling back to Defaults() if the
// file does not exist.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path, current: Defaults()}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return err
	}
	m.current = s
	if m.onChange != nil {
		m.onChange(s)
	}
	return nil
}

// Get returns the currently loaded settings.
func (m *Manager) Get() Settings { return m.current }

// OnChange registers a callback invoked after a successful hot-reload.
func (m *Manager) OnChange(fn func(Settings)) { m.onChange = fn }

// Save writes the current settings back to disk, creating the parent
// directory if needed.
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m.current)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

// Reload re-reads the settings file from disk. Exported so the fsnotify
// watcher in watch.go can trigger it on write events.
func (m *Manager) Reload() error { return m.reload() }
