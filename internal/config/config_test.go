// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Endpoints.Realm != "relay" {
		t.Errorf("realm = %q, want default", cfg.Endpoints.Realm)
	}
	if cfg.Realtime.HeartbeatSecs != 30 {
		t.Errorf("heartbeat = %d, want 30", cfg.Realtime.HeartbeatSecs)
	}
}

func TestLoadPartialFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[endpoints]
auth_url = "https://auth.example.com"

[ui]
theme = "light"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Endpoints.AuthURL != "https://auth.example.com" {
		t.Errorf("auth_url = %q", cfg.Endpoints.AuthURL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("theme = %q", cfg.UI.Theme)
	}
	if cfg.Endpoints.ChatURL == "" || cfg.Logging.Level != "info" {
		t.Error("unset sections not backfilled with defaults")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_CHAT_URL", "https://chat.example.com")
	t.Setenv("RELAY_LOG_LEVEL", "debug")
	t.Setenv("RELAY_BROKER_URL", "wss://broker.example.com/mqtt")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Endpoints.ChatURL != "https://chat.example.com" {
		t.Errorf("chat_url = %q, env override lost", cfg.Endpoints.ChatURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, env override lost", cfg.Logging.Level)
	}
	if cfg.Realtime.BrokerURL != "wss://broker.example.com/mqtt" {
		t.Errorf("broker_url = %q, env override lost", cfg.Realtime.BrokerURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad auth url", func(c *Config) { c.Endpoints.AuthURL = "not a url" }, "endpoints.auth_url"},
		{"broker http scheme", func(c *Config) { c.Realtime.BrokerURL = "http://broker" }, "realtime.broker_url"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"unknown theme", func(c *Config) { c.UI.Theme = "sepia" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.fillDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate passed, want error")
			}
			var errs ValidateErrors
			if !errors.As(err, &errs) {
				t.Fatalf("error type %T, want ValidateErrors", err)
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tt.field, errs)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.fillDefaults()
	cfg.Endpoints.AuthURL = "https://auth.example.com"
	cfg.UI.CompactMode = true

	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Endpoints.AuthURL != "https://auth.example.com" {
		t.Errorf("auth_url = %q after round trip", loaded.Endpoints.AuthURL)
	}
	if !loaded.UI.CompactMode {
		t.Error("compact_mode lost in round trip")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[endpoints]") {
		t.Error("saved file missing [endpoints] section")
	}
}

func TestGlobalSetAndReset(t *testing.T) {
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	custom := Default()
	custom.fillDefaults()
	custom.Endpoints.Realm = "custom"
	SetGlobal(custom)

	if Global().Endpoints.Realm != "custom" {
		t.Error("SetGlobal did not take effect")
	}
}
