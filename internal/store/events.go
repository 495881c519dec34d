// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// =============================================================================
// EVENTS
// =============================================================================

// Event is a state-change notification emitted to the UI after a
// mutation. The app wires the notifier to tea.Program.Send, so events
// become Bubble Tea messages and all rendering stays on the event loop.
type Event interface {
	storeEvent()
}

// ConversationsUpdated fires when the conversation list changes: a load
// completed, a latest-message pointer moved, or unread counts shifted.
type ConversationsUpdated struct{}

// MessagesUpdated fires when one conversation's thread changes.
type MessagesUpdated struct {
	ConversationID string
}

// TypingUpdated fires when a conversation's typing indicators change,
// including expiry.
type TypingUpdated struct {
	ConversationID string
}

// PresenceUpdated fires when a user's presence record changes.
type PresenceUpdated struct {
	UserID string
}

// SendFailed fires after a rolled-back optimistic send. Content carries
// the original text so the composer can restore it.
type SendFailed struct {
	ConversationID string
	Content        string
	Err            error
}

// ConnectionChanged fires when the realtime transport connects or
// drops.
type ConnectionChanged struct {
	Online bool
	Err    error
}

func (ConversationsUpdated) storeEvent() {}
func (MessagesUpdated) storeEvent()      {}
func (TypingUpdated) storeEvent()        {}
func (PresenceUpdated) storeEvent()      {}
func (SendFailed) storeEvent()           {}
func (ConnectionChanged) storeEvent()    {}
