// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the relay messaging
// client: users, conversations, messages, participants, presence records,
// and typing indicators.
//
// These types are client-local views of backend state. A Message always
// belongs to exactly one Conversation, a Conversation's latest-message
// pointer reflects the most recently accepted message (optimistically at
// first, then authoritatively), and presence is keyed uniquely by user ID.
package model
