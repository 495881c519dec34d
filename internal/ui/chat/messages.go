// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Bubble Tea message types for the conversation screen, grouped by
// origin: store events forwarded by the app, and completions of the
// store operations this screen issues.
package chat

import (
	"github.com/morganforge/relay-tui/internal/store"
)

// =============================================================================
// STORE EVENTS
// =============================================================================

// StoreEventMsg wraps a store event for the event loop. The app's
// notifier posts these through tea.Program.Send.
type StoreEventMsg struct {
	Event store.Event
}

// =============================================================================
// OPERATION COMPLETIONS
// =============================================================================

// ConversationsLoadedMsg signals that LoadConversations finished. A
// non-nil Err is non-fatal: the previous list is still showing.
type ConversationsLoadedMsg struct {
	Err error
}

// ConversationStartedMsg signals that a new-conversation prompt
// resolved. A successful start has already selected the thread.
type ConversationStartedMsg struct {
	ConversationID string
	Err            error
}

// ConversationSelectedMsg signals that SelectConversation finished.
type ConversationSelectedMsg struct {
	ConversationID string
	Err            error
}

// MessageSentMsg signals that a send completed. On error the composer
// already restored the text via the SendFailed store event.
type MessageSentMsg struct {
	ConversationID string
	Err            error
}

// FilesSentMsg signals that an attachment send completed.
type FilesSentMsg struct {
	ConversationID string
	Err            error
}
