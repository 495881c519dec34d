// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/morganforge/relay-tui/internal/util"
)

// =============================================================================
// CONTENT TYPES AND STATES
// =============================================================================

// Content types carried by a message.
const (
	ContentTypeText       = "text/plain"
	ContentTypeAttachment = "application/x-attachment"
)

// DeliveryState tracks the two-phase optimistic apply of an outgoing
// message: a tentative entry is confirmed with the backend-assigned
// identity or rolled back on failure.
type DeliveryState string

const (
	// DeliveryPending is a local optimistic placeholder not yet accepted.
	DeliveryPending DeliveryState = "pending"
	// DeliveryAccepted is confirmed by the chat service.
	DeliveryAccepted DeliveryState = "accepted"
	// DeliveryFailed was rejected; the UI restores the composer text.
	DeliveryFailed DeliveryState = "failed"
)

// UploadStatus tracks an attachment through the media-service flow.
type UploadStatus string

const (
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusReady     UploadStatus = "ready"
	UploadStatusFailed    UploadStatus = "failed"
)

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is the file metadata carried by an attachment message.
type Attachment struct {
	ID       string       `json:"id,omitempty"`
	FileName string       `json:"file_name"`
	FileType string       `json:"file_type"`
	Size     int64        `json:"size"`
	Status   UploadStatus `json:"status"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation thread.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`

	Content     string      `json:"content"`
	ContentType string      `json:"content_type"`
	Attachment  *Attachment `json:"attachment,omitempty"`

	// DedupeKey is the client-generated token that prevents duplicate
	// creation when a send is retried.
	DedupeKey string `json:"dedupe_key,omitempty"`

	SentAt time.Time     `json:"sent_at"`
	Read   bool          `json:"read"`
	State  DeliveryState `json:"state,omitempty"`
}

// NewPendingMessage creates the tentative local entry for an outgoing text
// message. The ID is local-only until Confirm replaces it with the
// backend-assigned identity.
func NewPendingMessage(conversationID, senderID, content string) *Message {
	return &Message{
		ID:             "local_" + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		ContentType:    ContentTypeText,
		DedupeKey:      uuid.NewString(),
		SentAt:         time.Now(),
		State:          DeliveryPending,
	}
}

// NewPendingAttachment creates the uploading-status row shown while a file
// moves through the media service.
func NewPendingAttachment(conversationID, senderID, caption string, att Attachment) *Message {
	att.Status = UploadStatusUploading
	return &Message{
		ID:             "local_" + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        caption,
		ContentType:    ContentTypeAttachment,
		Attachment:     &att,
		DedupeKey:      uuid.NewString(),
		SentAt:         time.Now(),
		State:          DeliveryPending,
	}
}

// Confirm reconciles the tentative entry with the accepted server message,
// adopting its identity and timestamp.
func (m *Message) Confirm(server *Message) {
	m.ID = server.ID
	if !server.SentAt.IsZero() {
		m.SentAt = server.SentAt
	}
	if server.Attachment != nil {
		m.Attachment = server.Attachment
	}
	m.State = DeliveryAccepted
}

// Fail marks the tentative entry as rejected.
func (m *Message) Fail() {
	m.State = DeliveryFailed
	if m.Attachment != nil {
		m.Attachment.Status = UploadStatusFailed
	}
}

// IsPending reports whether the message is still a local placeholder.
func (m *Message) IsPending() bool {
	return m.State == DeliveryPending
}

// IsAttachment reports whether the message carries a file.
func (m *Message) IsAttachment() bool {
	return m.ContentType == ContentTypeAttachment || m.Attachment != nil
}

// Preview returns a single-line summary truncated to maxRunes characters.
func (m *Message) Preview(maxRunes int) string {
	s := m.Content
	if m.IsAttachment() && m.Attachment != nil {
		if s == "" {
			s = m.Attachment.FileName
		} else {
			s = s + " (" + m.Attachment.FileName + ")"
		}
	}
	return util.TruncateRunes(util.OneLine(s), maxRunes)
}
