// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the conversation state consumed by every view:
// the conversation list, per-conversation message history, presence and
// typing indicators. It is the single writer of that state; views read
// snapshots through accessors and react to the typed events the store
// emits after each mutation.
//
// State arrives from three directions and the store reconciles all of
// them: REST fetches (authoritative history), realtime push events
// (low-latency deltas, deduplicated by message ID), and the local
// SQLite snapshot (instant paint before the backends answer). Outgoing
// messages use a two-phase optimistic apply: a tentative entry appears
// immediately, then is confirmed with the backend-assigned identity or
// rolled back.
package store
