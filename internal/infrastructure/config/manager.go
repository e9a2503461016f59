package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger is the logging surface used by the ConfigManager.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ReloadFunc is called after a reload applied at least one reloadable change.
type ReloadFunc func(old, updated *Config)

// ConfigManager owns the active configuration and hot-reloads the
// reloadable keys when the file changes on disk.
type ConfigManager struct {
	path     string
	logger   Logger
	debounce time.Duration

	mu        sync.RWMutex
	current   *Config
	callbacks []ReloadFunc

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewConfigManager creates a manager for an already loaded configuration.
func NewConfigManager(path string, cfg *Config, logger Logger) *ConfigManager {
	return &ConfigManager{
		path:     path,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		current:  cfg,
	}
}

// Current returns the active configuration. Callers must not mutate it.
func (m *ConfigManager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnReload registers a callback invoked after each applied reload.
func (m *ConfigManager) OnReload(fn ReloadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Start begins watching the config file. It is a no-op without a path.
// The parent directory is watched since editors replace files by rename.
func (m *ConfigManager) Start(ctx context.Context) error {
	if m.path == "" {
		return nil
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		m.mu.Unlock()
		return fmt.Errorf("watching config directory: %w", err)
	}

	m.watcher = watcher
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	go m.run(ctx)

	m.logger.Info("config watcher started", "path", m.path)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (m *ConfigManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh

	if err := m.watcher.Close(); err != nil {
		m.logger.Error("closing config watcher", "error", err)
	}
}

func (m *ConfigManager) run(ctx context.Context) {
	defer close(m.doneCh)

	target := filepath.Clean(m.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case <-m.stopCh:
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce rapid saves
			pending = time.After(m.debounce)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "error", err)

		case <-pending:
			pending = nil
			if err := m.Reload(); err != nil {
				m.logger.Error("config reload failed, keeping previous configuration", "error", err)
			}
		}
	}
}

// Reload re-reads the file and applies changes to reloadable keys.
// Changes to static keys are reported and ignored until restart.
func (m *ConfigManager) Reload() error {
	loaded, err := Load(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	old := m.current
	updated := *old
	var applied []string

	for _, key := range changedKeys(old, loaded) {
		if !IsReloadable(key) {
			m.logger.Warn("config change ignored until restart",
				"key", key,
				"reason", getRestartReason(key),
			)
			continue
		}
		applyKey(&updated, loaded, key)
		applied = append(applied, key)
	}

	if len(applied) == 0 {
		m.mu.Unlock()
		return nil
	}

	m.current = &updated
	callbacks := append([]ReloadFunc(nil), m.callbacks...)
	m.mu.Unlock()

	m.logger.Info("config reloaded", "keys", applied)
	for _, fn := range callbacks {
		fn(old, &updated)
	}
	return nil
}

// changedKeys lists the keys whose values differ between two configurations.
func changedKeys(old, updated *Config) []string {
	var keys []string
	if old.Logging.Level != updated.Logging.Level {
		keys = append(keys, "logging.level")
	}
	if old.Logging.Format != updated.Logging.Format {
		keys = append(keys, "logging.format")
	}
	if !reflect.DeepEqual(old.Bot.Modules, updated.Bot.Modules) {
		keys = append(keys, "bot.modules")
	}
	if !reflect.DeepEqual(old.Slack, updated.Slack) {
		keys = append(keys, "slack")
	}
	if old.Server.Port != updated.Server.Port {
		keys = append(keys, "server.port")
	}
	if old.Storage.Type != updated.Storage.Type {
		keys = append(keys, "storage.type")
	}
	if old.Storage.SQLite.Path != updated.Storage.SQLite.Path {
		keys = append(keys, "storage.sqlite.path")
	}
	if !reflect.DeepEqual(old.Storage.MySQL, updated.Storage.MySQL) {
		keys = append(keys, "storage.mysql")
	}
	return keys
}

func applyKey(dst, src *Config, key string) {
	switch key {
	case "logging.level":
		dst.Logging.Level = src.Logging.Level
	}
}
