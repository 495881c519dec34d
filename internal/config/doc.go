// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and manages the relay client configuration.
//
// Settings come from three layers, lowest precedence first: built-in
// defaults, the TOML file at ~/.relay/config.toml, and RELAY_* environment
// variables (a .env file in the config directory or working directory is
// read first). The loaded configuration is validated before use; service
// URLs must parse and the log level must be known.
//
// Watch re-reads the file when it changes on disk, so endpoint or theme
// edits take effect without a restart.
package config
