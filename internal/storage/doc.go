// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists a per-user local cache of conversation state
// in SQLite, so the client can show the last known snapshot before the
// backends answer and across restarts. The cache is keyed to one user:
// each account gets its own database file under the data directory, and
// logout removes the file outright.
//
// The cache is a snapshot, not a source of truth. The conversation
// state store overwrites it wholesale after every successful fetch and
// never reconciles cached rows against live data.
package storage
