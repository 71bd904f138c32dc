// Package config loads, validates and edits the YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bryanchriswhite/fbcam/internal/logger"
	"gopkg.in/yaml.v3"
)

// DefaultPath is ~/.config/fbcam/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "fbcam", "config.yaml"), nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager loads configFile (DefaultPath when empty), creating it with
// defaults when it does not exist yet.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Str("camera", m.config.Camera.Backend).
		Str("display", m.config.Display.Device).
		Msg("Config loaded")
	return m, nil
}

// load reads the configuration from disk. Missing keys keep their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}
	cfg, err := decode(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// decode parses YAML over the defaults, rejecting unknown keys.
func decode(data []byte) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.configPath
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	if m.config.LogPretty != nil {
		pretty := *m.config.LogPretty
		cfg.LogPretty = &pretty
	}
	return &cfg
}

// Update validates and stores cfg, then saves it.
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()
	if cfg == nil {
		cfg = Defaults()
	}

	log := logger.WithComponent("config")
	log.Debug().Str("path", m.configPath).Msg("Saving config")

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return err
	}
	return nil
}

// Value returns the setting at a dotted key such as "camera.fps".
func (m *Manager) Value(key string) (any, error) {
	tree, err := m.tree()
	if err != nil {
		return nil, err
	}
	parent, leaf, err := walk(tree, key)
	if err != nil {
		return nil, err
	}
	v, ok := parent[leaf]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	return v, nil
}

// Set parses value as YAML, stores it at a dotted key, validates the
// result and saves it.
func (m *Manager) Set(key, value string) error {
	tree, err := m.tree()
	if err != nil {
		return err
	}
	parent, leaf, err := walk(tree, key)
	if err != nil {
		return err
	}
	if _, ok := parent[leaf]; !ok && !optional[key] {
		return fmt.Errorf("unknown config key %q", key)
	}

	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	parent[leaf] = v

	data, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	cfg, err := decode(data)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return m.Update(cfg)
}

// optional lists keys omitted from the YAML when unset.
var optional = map[string]bool{
	"log_pretty":      true,
	"camera.pipeline": true,
}

func (m *Manager) tree() (map[string]any, error) {
	data, err := yaml.Marshal(m.Get())
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// walk descends to the map holding the last key segment.
func walk(tree map[string]any, key string) (map[string]any, string, error) {
	parts := strings.Split(key, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("unknown config key %q", key)
		}
		node = next
	}
	return node, parts[len(parts)-1], nil
}
