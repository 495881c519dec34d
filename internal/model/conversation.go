// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// ConversationType distinguishes direct threads from group threads.
type ConversationType string

const (
	// ConversationDirect is a two-party thread.
	ConversationDirect ConversationType = "direct"
	// ConversationGroup is a multi-party thread with a title.
	ConversationGroup ConversationType = "group"
)

// Conversation is a direct or group messaging thread.
type Conversation struct {
	ID    string           `json:"id"`
	Type  ConversationType `json:"type"`
	Title string           `json:"title,omitempty"`

	// Participants are ordered as the backend returned them.
	Participants     []Participant `json:"participants,omitempty"`
	ParticipantCount int           `json:"participant_count"`

	// LastMessage is the latest accepted message, nil for empty threads.
	LastMessage *Message `json:"last_message,omitempty"`

	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayTitle returns the thread title for rendering. Direct threads use
// the other party's name; untitled groups fall back to a participant list.
func (c *Conversation) DisplayTitle(localUserID string) string {
	if c.Title != "" {
		return c.Title
	}
	if c.Type == ConversationDirect {
		for _, p := range c.Participants {
			if p.UserID != localUserID {
				return p.DisplayName
			}
		}
	}
	names := ""
	for i, p := range c.Participants {
		if p.UserID == localUserID {
			continue
		}
		if names != "" {
			names += ", "
		}
		names += p.DisplayName
		if i >= 3 {
			names += ", ..."
			break
		}
	}
	if names == "" {
		return "Conversation"
	}
	return names
}

// SetLastMessage advances the latest-message pointer. It never moves the
// pointer backwards: an older message arriving late (REST refresh racing a
// push event) is ignored.
func (c *Conversation) SetLastMessage(msg *Message) {
	if msg == nil {
		return
	}
	if c.LastMessage != nil && msg.SentAt.Before(c.LastMessage.SentAt) {
		return
	}
	c.LastMessage = msg
	if msg.SentAt.After(c.UpdatedAt) {
		c.UpdatedAt = msg.SentAt
	}
}

// HasParticipant reports whether the given user belongs to the thread.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Preview returns a one-line summary of the latest message for list rows.
func (c *Conversation) Preview() string {
	if c.LastMessage == nil {
		return "No messages yet"
	}
	return c.LastMessage.Preview(80)
}
