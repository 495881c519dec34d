// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// relay-setup is the first-run wizard for relay. It checks the local
// environment, probes the configured service endpoints, and writes
// ~/.relay/config.toml so the main client starts clean.
//
// The wizard is a Bubble Tea program on a TTY and falls back to plain
// text output when stdout is piped.
package main
