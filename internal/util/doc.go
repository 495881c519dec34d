// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the relay client.
//
// String helpers are rune- and width-aware so that message previews and
// roster entries never split multi-byte characters. AtomicWriteFile backs
// every local snapshot write: a crash mid-write must leave the previous
// complete snapshot intact.
package util
