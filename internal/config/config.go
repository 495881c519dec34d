// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete relay client configuration.
type Config struct {
	Version string `toml:"version"`

	// Endpoints are the four backend services.
	Endpoints EndpointsConfig `toml:"endpoints"`

	// Realtime configures the broker connection.
	Realtime RealtimeConfig `toml:"realtime"`

	// UI configures rendering.
	UI UIConfig `toml:"ui"`

	// Logging configures the structured log file.
	Logging LoggingConfig `toml:"logging"`

	// Storage configures local state locations.
	Storage StorageConfig `toml:"storage"`
}

// EndpointsConfig contains the backend service URLs.
type EndpointsConfig struct {
	// AuthURL is the identity service, also serving the OAuth realm.
	AuthURL string `toml:"auth_url"`
	// ChatURL is the conversation and message service.
	ChatURL string `toml:"chat_url"`
	// PresenceURL is the availability service.
	PresenceURL string `toml:"presence_url"`
	// MediaURL is the attachment upload service.
	MediaURL string `toml:"media_url"`
	// Realm is the OAuth realm used by the password-grant fallback.
	Realm string `toml:"realm"`
}

// RealtimeConfig contains broker settings.
type RealtimeConfig struct {
	// BrokerURL is the MQTT-over-WebSocket endpoint. Empty means use
	// the URL returned with the broker credentials.
	BrokerURL string `toml:"broker_url"`
	// HeartbeatSecs is the liveness publish interval.
	HeartbeatSecs int `toml:"heartbeat_secs"`
}

// UIConfig contains rendering settings.
type UIConfig struct {
	// Theme selects the color palette: "dark", "light" or "auto".
	Theme string `toml:"theme"`
	// Markdown renders message bodies through glamour when true.
	Markdown bool `toml:"markdown"`
	// TimestampFormat is the Go layout for message times.
	TimestampFormat string `toml:"timestamp_format"`
	// CompactMode collapses message headers for dense threads.
	CompactMode bool `toml:"compact_mode"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`
	// File overrides the log path (empty = <data_dir>/relay.log).
	File string `toml:"file"`
}

// StorageConfig contains local state locations.
type StorageConfig struct {
	// DataDir holds the session file, local cache and logs.
	// Default: ~/.relay
	DataDir string `toml:"data_dir"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Endpoints: EndpointsConfig{
			AuthURL:     "http://localhost:8081",
			ChatURL:     "http://localhost:8082",
			PresenceURL: "http://localhost:8083",
			MediaURL:    "http://localhost:8084",
			Realm:       "relay",
		},
		Realtime: RealtimeConfig{
			HeartbeatSecs: 30,
		},
		UI: UIConfig{
			Theme:           "auto",
			Markdown:        true,
			TimestampFormat: "15:04",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the relay configuration directory (~/.relay).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".relay"), nil
}

// ConfigPath returns the TOML config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the configuration directory if missing.
func EnsureConfigDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration: defaults, then the config file if
// present, then environment overrides. A .env file next to the config
// or in the working directory is applied to the environment first.
func Load() (*Config, error) {
	loadDotEnv()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from an explicit file path. A
// missing file is not an error; defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv applies .env files to the process environment without
// overriding variables already set.
func loadDotEnv() {
	var candidates []string
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	candidates = append(candidates, ".env")

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logging.L().Warn("failed to load env file",
				zap.String("path", path), zap.Error(err))
		}
	}
}

// fillDefaults backfills zero values left by a partial config file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Endpoints.AuthURL == "" {
		c.Endpoints.AuthURL = def.Endpoints.AuthURL
	}
	if c.Endpoints.ChatURL == "" {
		c.Endpoints.ChatURL = def.Endpoints.ChatURL
	}
	if c.Endpoints.PresenceURL == "" {
		c.Endpoints.PresenceURL = def.Endpoints.PresenceURL
	}
	if c.Endpoints.MediaURL == "" {
		c.Endpoints.MediaURL = def.Endpoints.MediaURL
	}
	if c.Endpoints.Realm == "" {
		c.Endpoints.Realm = def.Endpoints.Realm
	}
	if c.Realtime.HeartbeatSecs <= 0 {
		c.Realtime.HeartbeatSecs = def.Realtime.HeartbeatSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.UI.TimestampFormat == "" {
		c.UI.TimestampFormat = def.UI.TimestampFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Storage.DataDir == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.DataDir = dir
		}
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RELAY_* environment variables over the
// loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RELAY_AUTH_URL"); v != "" {
		c.Endpoints.AuthURL = v
	}
	if v := os.Getenv("RELAY_CHAT_URL"); v != "" {
		c.Endpoints.ChatURL = v
	}
	if v := os.Getenv("RELAY_PRESENCE_URL"); v != "" {
		c.Endpoints.PresenceURL = v
	}
	if v := os.Getenv("RELAY_MEDIA_URL"); v != "" {
		c.Endpoints.MediaURL = v
	}
	if v := os.Getenv("RELAY_REALM"); v != "" {
		c.Endpoints.Realm = v
	}
	if v := os.Getenv("RELAY_BROKER_URL"); v != "" {
		c.Realtime.BrokerURL = v
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RELAY_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("RELAY_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidateErrors aggregates every invalid setting found.
type ValidateErrors []ValidationError

// Error implements the error interface.
func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	checkURL := func(field, value string, schemes ...string) {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: field, Message: "not a valid URL: " + value})
			return
		}
		for _, s := range schemes {
			if u.Scheme == s {
				return
			}
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("scheme %q not allowed (want %s)", u.Scheme, strings.Join(schemes, " or ")),
		})
	}

	checkURL("endpoints.auth_url", c.Endpoints.AuthURL, "http", "https")
	checkURL("endpoints.chat_url", c.Endpoints.ChatURL, "http", "https")
	checkURL("endpoints.presence_url", c.Endpoints.PresenceURL, "http", "https")
	checkURL("endpoints.media_url", c.Endpoints.MediaURL, "http", "https")
	if c.Realtime.BrokerURL != "" {
		checkURL("realtime.broker_url", c.Realtime.BrokerURL, "ws", "wss", "tcp", "ssl")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "unknown level " + c.Logging.Level,
		})
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: "unknown theme " + c.UI.Theme,
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path.
func Save(cfg *Config) error {
	if _, err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML to an explicit path.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// LIVE RELOAD
// =============================================================================

// Watch re-reads the config file whenever it changes and hands the
// result to onChange. Invalid intermediate states (editors write in
// multiple steps) are skipped. The returned stop function releases the
// watcher.
func Watch(path string, onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory: editors replace the file, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadFromPath(path)
				if err != nil {
					logging.L().Warn("config reload skipped", zap.Error(err))
					continue
				}
				logging.L().Info("config reloaded", zap.String("path", path))
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.L().Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

// =============================================================================
// GLOBAL ACCESS
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide configuration, loading it on first
// use. Load failures fall back to defaults.
func Global() *Config {
	globalMu.RLock()
	if globalCfg != nil {
		defer globalMu.RUnlock()
		return globalCfg
	}
	globalMu.RUnlock()

	cfg, err := Load()
	if err != nil {
		logging.L().Warn("failed to load config, using defaults", zap.Error(err))
		cfg = Default()
		cfg.fillDefaults()
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		globalCfg = cfg
	}
	return globalCfg
}

// SetGlobal replaces the process-wide configuration (live reload, tests).
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// ResetGlobalForTesting clears the cached global configuration.
func ResetGlobalForTesting() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = nil
}
