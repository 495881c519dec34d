// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation screen: the conversation list
// pane, the message thread with markdown rendering, the presence
// sidebar, the typing line and the composer with attachment picking.
//
// The screen is a read-only projection of the conversation state store.
// Every mutation goes through a tea.Cmd that calls the store, and every
// store change arrives back as a StoreEventMsg, so rendering state
// never diverges from the store.
package chat
