// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/relay-tui/internal/store"
)

// opTimeout bounds every store operation issued from the screen.
// Uploads get longer because they move file bytes.
const (
	opTimeout     = 15 * time.Second
	uploadTimeout = 2 * time.Minute
)

// =============================================================================
// STORE COMMANDS
// =============================================================================

// loadConversationsCmd fetches the conversation list off the event
// loop.
func loadConversationsCmd(st *store.Store, force bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return ConversationsLoadedMsg{Err: st.LoadConversations(ctx, force)}
	}
}

// selectConversationCmd opens a conversation.
func selectConversationCmd(st *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return ConversationSelectedMsg{
			ConversationID: id,
			Err:            st.SelectConversation(ctx, id),
		}
	}
}

// startConversationCmd resolves a username, creates or reuses the
// direct thread and opens it.
func startConversationCmd(st *store.Store, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		id, err := st.StartConversation(ctx, username)
		if err != nil {
			return ConversationStartedMsg{Err: err}
		}
		return ConversationStartedMsg{
			ConversationID: id,
			Err:            st.SelectConversation(ctx, id),
		}
	}
}

// sendMessageCmd posts a text message.
func sendMessageCmd(st *store.Store, conversationID, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return MessageSentMsg{
			ConversationID: conversationID,
			Err:            st.SendMessage(ctx, conversationID, content),
		}
	}
}

// sendFilesCmd posts a message with attachments.
func sendFilesCmd(st *store.Store, conversationID, caption string, paths []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		return FilesSentMsg{
			ConversationID: conversationID,
			Err:            st.SendMessageWithFiles(ctx, conversationID, caption, paths),
		}
	}
}

// typingCmd signals the local user is typing, fire and forget.
func typingCmd(st *store.Store, conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		st.SendTypingIndicator(ctx, conversationID)
		return nil
	}
}
