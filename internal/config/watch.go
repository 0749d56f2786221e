package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/qutest-go/qutest/internal/logger"
)

// Watch hot-reloads the settings file on write events while the interactive
// loop (C9) is running. It returns a nil watcher and the error if the
// settings file itself can't be watched (e.g. it does not exist yet);
// callers should treat that as non-fatal since the tool runs fine off
// Defaults().
func (m *Manager) Watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(m.path); err != nil {
		// File may not exist yet; no fallback watch is set up.
		_ = w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := m.reload(); err != nil {
						logger.Warn("config reload failed", "error", err)
					} else {
						logger.Debug("config reloaded", "path", m.path)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", "error", err)
			}
		}
	}()

	return w, nil
}
