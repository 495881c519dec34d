// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/realtime"
)

// Upload retry bounds. Attachment association can race the message row
// becoming visible to the media service, which surfaces as a
// foreign-key violation; that exact signature is retried, anything else
// fails the file.
const (
	uploadRetryAttempts = 10
	uploadRetryBackoff  = 500 * time.Millisecond
)

// =============================================================================
// TEXT MESSAGES
// =============================================================================

// SendMessage posts a text message with a two-phase optimistic apply: a
// tentative entry appears immediately, then either adopts the
// backend-assigned identity or is rolled back. On rollback the emitted
// SendFailed event carries the text so the composer restores it.
func (s *Store) SendMessage(ctx context.Context, conversationID, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	pending := model.NewPendingMessage(conversationID, s.local.ID, content)
	pending.SenderName = s.local.Name()
	s.appendMessage(pending)
	s.notify(MessagesUpdated{ConversationID: conversationID})

	server, err := s.backend.SendMessage(ctx, conversationID, api.SendMessageRequest{
		Content:     content,
		ContentType: model.ContentTypeText,
		DedupeKey:   pending.DedupeKey,
	})
	if err != nil {
		s.removeMessage(conversationID, pending.ID)
		s.notify(SendFailed{ConversationID: conversationID, Content: content, Err: err})
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.confirmMessage(conversationID, pending.ID, server)
	return nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// SendMessageWithFiles sends a message per file: an uploading-status
// row appears immediately, the bytes move through the media service
// (initiate, upload to the storage target, complete) and the attachment
// is associated with the posted message. Each file succeeds or fails
// independently; the first error is returned after all files ran.
func (s *Store) SendMessageWithFiles(ctx context.Context, conversationID, caption string, paths []string) error {
	var firstErr error
	for _, path := range paths {
		if err := s.sendFile(ctx, conversationID, caption, path); err != nil {
			logging.L().Warn("attachment send failed",
				zap.String("file", path), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		// The caption rides on the first file only.
		caption = ""
	}
	return firstErr
}

func (s *Store) sendFile(ctx context.Context, conversationID, caption, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	fileName := filepath.Base(path)
	fileType := mime.TypeByExtension(filepath.Ext(path))
	if fileType == "" {
		fileType = "application/octet-stream"
	}

	pending := model.NewPendingAttachment(conversationID, s.local.ID, caption, model.Attachment{
		FileName: fileName,
		FileType: fileType,
		Size:     int64(len(data)),
	})
	pending.SenderName = s.local.Name()
	s.appendMessage(pending)
	s.notify(MessagesUpdated{ConversationID: conversationID})

	fail := func(err error) error {
		s.failMessage(conversationID, pending.ID)
		s.notify(MessagesUpdated{ConversationID: conversationID})
		return err
	}

	session, err := s.backend.InitiateUpload(ctx, api.InitiateUploadRequest{
		FileName:       fileName,
		FileType:       fileType,
		Size:           int64(len(data)),
		ConversationID: conversationID,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initiate upload: %w", err))
	}

	if err := s.backend.UploadBytes(ctx, session.TargetURL, fileType, bytes.NewReader(data), int64(len(data))); err != nil {
		return fail(fmt.Errorf("failed to upload %s: %w", fileName, err))
	}

	result, err := s.backend.CompleteUpload(ctx, session.UploadID)
	if err != nil {
		return fail(fmt.Errorf("failed to complete upload: %w", err))
	}

	server, err := s.backend.SendMessage(ctx, conversationID, api.SendMessageRequest{
		Content:      caption,
		ContentType:  model.ContentTypeAttachment,
		DedupeKey:    pending.DedupeKey,
		AttachmentID: result.AttachmentID,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to post attachment message: %w", err))
	}

	if err := s.associateWithRetry(ctx, result.AttachmentID, server.ID); err != nil {
		return fail(err)
	}

	s.confirmMessage(conversationID, pending.ID, server)
	s.patchAttachmentStatus(conversationID, server.ID, model.UploadStatusReady)
	s.notify(MessagesUpdated{ConversationID: conversationID})
	return nil
}

// associateWithRetry links an attachment to its message, retrying only
// the foreign-key-violation signature.
func (s *Store) associateWithRetry(ctx context.Context, attachmentID, messageID string) error {
	var err error
	for attempt := 1; attempt <= uploadRetryAttempts; attempt++ {
		err = s.backend.AssociateAttachment(ctx, attachmentID, messageID)
		if err == nil {
			return nil
		}
		if !api.IsForeignKeyViolation(err) {
			return fmt.Errorf("failed to associate attachment: %w", err)
		}
		logging.L().Debug("attachment association not yet visible",
			zap.String("attachment", attachmentID), zap.Int("attempt", attempt))
		if attempt < uploadRetryAttempts {
			s.sleep(uploadRetryBackoff)
		}
	}
	return fmt.Errorf("attachment association failed after %d attempts: %w", uploadRetryAttempts, err)
}

// =============================================================================
// TYPING
// =============================================================================

// SendTypingIndicator tells other participants the local user is
// typing. Fire and forget: rate limited per session, transport
// preferred with a REST fallback, failures only logged.
func (s *Store) SendTypingIndicator(ctx context.Context, conversationID string) {
	if !s.typingLimit.Allow() {
		return
	}

	if s.rt != nil && s.rt.Connected() {
		err := s.rt.Publish(realtime.TypingTopic(conversationID), typingPayload{
			ConversationID: conversationID,
			UserID:         s.local.ID,
			DisplayName:    s.local.Name(),
			IsTyping:       true,
		}, 0, false)
		if err == nil {
			return
		}
		logging.L().Debug("typing publish failed", zap.Error(err))
	}

	if err := s.backend.NotifyTyping(ctx, conversationID, true); err != nil {
		logging.L().Debug("typing notify failed", zap.Error(err))
	}
}

// =============================================================================
// THREAD MUTATION
// =============================================================================

// appendMessage adds an entry to a thread and indexes its ID.
func (s *Store) appendMessage(msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := msg.ConversationID
	s.messages[id] = append(s.messages[id], msg)
	if s.seenIDs[id] == nil {
		s.seenIDs[id] = make(map[string]struct{})
	}
	s.seenIDs[id][msg.ID] = struct{}{}
}

// removeMessage rolls a tentative entry back out of the thread.
func (s *Store) removeMessage(conversationID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.messages[conversationID]
	for i, m := range thread {
		if m.ID == messageID {
			s.messages[conversationID] = append(thread[:i], thread[i+1:]...)
			break
		}
	}
	delete(s.seenIDs[conversationID], messageID)
}

// failMessage marks a tentative entry rejected but leaves it visible.
func (s *Store) failMessage(conversationID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			m.Fail()
			return
		}
	}
}

// confirmMessage adopts the server identity for a tentative entry and
// advances the latest-message pointer.
func (s *Store) confirmMessage(conversationID, localID string, server *model.Message) {
	s.mu.Lock()
	for _, m := range s.messages[conversationID] {
		if m.ID == localID {
			m.Confirm(server)
			delete(s.seenIDs[conversationID], localID)
			s.seenIDs[conversationID][m.ID] = struct{}{}
			break
		}
	}
	if conv, ok := s.convIndex[conversationID]; ok {
		conv.SetLastMessage(server)
		if server.SentAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = server.SentAt
		}
		s.sortConversationsLocked()
	}
	s.mu.Unlock()

	s.persistMessages(conversationID)
	s.notify(MessagesUpdated{ConversationID: conversationID})
	s.notify(ConversationsUpdated{})
}

// patchAttachmentStatus updates the attachment badge on a thread entry.
func (s *Store) patchAttachmentStatus(conversationID, messageID string, status model.UploadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages[conversationID] {
		if m.ID == messageID && m.Attachment != nil {
			m.Attachment.Status = status
			return
		}
	}
}
