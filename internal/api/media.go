// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/morganforge/relay-tui/internal/model"
)

// =============================================================================
// UPLOAD SESSIONS
// =============================================================================

// InitiateUploadRequest opens an upload session for one file. MessageID
// references the chat message the attachment will hang off; the media
// service may reject it with a foreign-key-violation if the message is not
// yet durable on its side (see IsForeignKeyViolation).
type InitiateUploadRequest struct {
	FileName       string `json:"file_name"`
	FileType       string `json:"file_type"`
	Size           int64  `json:"size"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// UploadSession is the media service's answer to an initiate call. Bytes
// go directly to TargetURL, not through the media service.
type UploadSession struct {
	UploadID  string `json:"upload_id"`
	TargetURL string `json:"target_url"`
}

// InitiateUpload opens an upload session.
func (c *Client) InitiateUpload(ctx context.Context, req InitiateUploadRequest) (*UploadSession, error) {
	var session UploadSession
	if err := c.do(ctx, http.MethodPost, c.cfg.MediaURL+"/api/v1/upload/initiate", req, &session, true); err != nil {
		return nil, err
	}
	return &session, nil
}

// UploadBytes streams file content directly to the storage target returned
// by InitiateUpload. The target is pre-authorized, so no session headers
// are attached.
func (c *Client) UploadBytes(ctx context.Context, targetURL, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, targetURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = size

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := readLimited(resp.Body)
		return newAPIError(resp.StatusCode, data)
	}
	return nil
}

// CompleteUploadResult carries the attachment identifier minted once the
// bytes are stored.
type CompleteUploadResult struct {
	AttachmentID string `json:"attachment_id"`
}

// CompleteUpload finalizes an upload session.
func (c *Client) CompleteUpload(ctx context.Context, uploadID string) (*CompleteUploadResult, error) {
	var result CompleteUploadResult
	endpoint := c.cfg.MediaURL + "/api/v1/upload/" + url.PathEscape(uploadID) + "/complete"
	if err := c.do(ctx, http.MethodPost, endpoint, nil, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Attachment fetches attachment metadata.
func (c *Client) Attachment(ctx context.Context, id string) (*model.Attachment, error) {
	var att model.Attachment
	endpoint := c.cfg.MediaURL + "/api/v1/attachments/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &att, true); err != nil {
		return nil, err
	}
	return &att, nil
}

// DeleteAttachment removes an attachment.
func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	endpoint := c.cfg.MediaURL + "/api/v1/attachments/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil, true)
}

// AssociateAttachment binds a stored attachment to its chat message.
func (c *Client) AssociateAttachment(ctx context.Context, attachmentID, messageID string) error {
	endpoint := c.cfg.MediaURL + "/api/v1/attachments/" + url.PathEscape(attachmentID) + "/associate"
	return c.do(ctx, http.MethodPost, endpoint, map[string]string{"message_id": messageID}, nil, true)
}
