// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/morganforge/relay-tui/internal/model"
)

// =============================================================================
// CONVERSATIONS
// =============================================================================

// Conversations fetches the conversation list with denormalized
// latest-message and participant-count fields.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := c.do(ctx, http.MethodGet, c.cfg.ChatURL+"/api/v1/conversations", nil, &convs, true)
	return convs, err
}

// CreateConversationRequest starts a direct or group thread.
type CreateConversationRequest struct {
	Type           model.ConversationType `json:"type"`
	Title          string                 `json:"title,omitempty"`
	ParticipantIDs []string               `json:"participant_ids"`
}

// CreateConversation starts a new thread and returns it.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.do(ctx, http.MethodPost, c.cfg.ChatURL+"/api/v1/conversations", req, &conv, true); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Conversation fetches a single thread by ID.
func (c *Client) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &conv, true); err != nil {
		return nil, err
	}
	return &conv, nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// Messages fetches the message history for a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	err := c.do(ctx, http.MethodGet, endpoint, nil, &msgs, true)
	return msgs, err
}

// SendMessageRequest creates a message. DedupeKey prevents duplicate
// creation when a send is retried.
type SendMessageRequest struct {
	Content      string `json:"content"`
	ContentType  string `json:"content_type"`
	DedupeKey    string `json:"dedupe_key"`
	AttachmentID string `json:"attachment_id,omitempty"`
}

// SendMessage posts a message and returns the accepted server record.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req SendMessageRequest) (*model.Message, error) {
	var msg model.Message
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, endpoint, req, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks every message in the conversation as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(conversationID) + "/read"
	return c.do(ctx, http.MethodPost, endpoint, nil, nil, true)
}

// NotifyTyping reports the local user's composing state over REST. The
// realtime publish is the primary path; this endpoint backs clients whose
// broker connection is down.
func (c *Client) NotifyTyping(ctx context.Context, conversationID string, isTyping bool) error {
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(conversationID) + "/typing"
	return c.do(ctx, http.MethodPost, endpoint, map[string]bool{"is_typing": isTyping}, nil, true)
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// Participants fetches the membership records for a conversation.
func (c *Client) Participants(ctx context.Context, conversationID string) ([]model.Participant, error) {
	var parts []model.Participant
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(conversationID) + "/participants"
	err := c.do(ctx, http.MethodGet, endpoint, nil, &parts, true)
	return parts, err
}

// AddParticipant adds a user to a group conversation.
func (c *Client) AddParticipant(ctx context.Context, conversationID, userID string) error {
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(conversationID) + "/participants"
	return c.do(ctx, http.MethodPost, endpoint, map[string]string{"user_id": userID}, nil, true)
}

// RemoveParticipant removes a user from a group conversation.
func (c *Client) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	endpoint := c.cfg.ChatURL + "/api/v1/conversations/" + url.PathEscape(conversationID) +
		"/participants/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil, true)
}
