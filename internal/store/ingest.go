// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/realtime"
)

// typingPayload is the wire format on chat/{id}/typing.
type typingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name,omitempty"`
	IsTyping       bool   `json:"is_typing"`
}

// =============================================================================
// TRANSPORT CALLBACKS
// =============================================================================

// handleTransportConnect restores per-conversation subscriptions after
// every connect. The broker session is clean, so nothing survives a
// reconnect on its own.
func (s *Store) handleTransportConnect() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.subscribed))
	for id := range s.subscribed {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.rt.Subscribe(realtime.MessagesTopic(id), s.handleMessagePayload)
		s.rt.Subscribe(realtime.TypingTopic(id), s.handleTypingPayload)
	}
	s.rt.Subscribe(realtime.TopicPresenceWildcard, s.handlePresencePayload)

	s.notify(ConnectionChanged{Online: true})
}

// handleTransportLost reports the drop; paho reconnects on its own and
// the presence poll keeps status moving meanwhile.
func (s *Store) handleTransportLost(err error) {
	s.notify(ConnectionChanged{Online: false, Err: err})
}

// =============================================================================
// PAYLOAD HANDLERS
// =============================================================================

// handleMessagePayload ingests a pushed chat message. Parse failures
// are swallowed and logged; one bad payload must not break the
// subscription.
func (s *Store) handleMessagePayload(topic string, payload []byte) {
	var msg model.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		logging.L().Warn("malformed message payload",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	if msg.ID == "" || msg.ConversationID == "" {
		logging.L().Warn("incomplete message payload", zap.String("topic", topic))
		return
	}
	s.IngestMessage(msg)
}

// handleTypingPayload ingests a typing signal.
func (s *Store) handleTypingPayload(topic string, payload []byte) {
	var ev typingPayload
	if err := json.Unmarshal(payload, &ev); err != nil {
		logging.L().Warn("malformed typing payload",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	if ev.ConversationID == "" || ev.UserID == "" {
		return
	}
	s.IngestTyping(ev.ConversationID, ev.UserID, ev.DisplayName, ev.IsTyping)
}

// handlePresencePayload ingests a pushed presence record.
func (s *Store) handlePresencePayload(topic string, payload []byte) {
	var rec model.PresenceRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		logging.L().Warn("malformed presence payload",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	if rec.UserID == "" {
		return
	}
	s.IngestPresence(rec)
}

// =============================================================================
// INGESTION
// =============================================================================

// IngestMessage applies one message delta. Idempotent on message ID, so
// replayed push events are no-ops. A push event for the local user's
// own in-flight send confirms the tentative entry by dedupe key instead
// of duplicating it.
func (s *Store) IngestMessage(msg model.Message) {
	s.mu.Lock()

	id := msg.ConversationID
	if _, dup := s.seenIDs[id][msg.ID]; dup {
		s.mu.Unlock()
		return
	}

	msg.State = model.DeliveryAccepted

	confirmed := false
	if msg.DedupeKey != "" {
		for _, m := range s.messages[id] {
			if m.IsPending() && m.DedupeKey == msg.DedupeKey {
				localID := m.ID
				m.Confirm(&msg)
				delete(s.seenIDs[id], localID)
				confirmed = true
				break
			}
		}
	}

	if !confirmed {
		m := msg
		s.messages[id] = append(s.messages[id], &m)
	}
	if s.seenIDs[id] == nil {
		s.seenIDs[id] = make(map[string]struct{})
	}
	s.seenIDs[id][msg.ID] = struct{}{}

	if conv, ok := s.convIndex[id]; ok {
		conv.SetLastMessage(&msg)
		if msg.SentAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = msg.SentAt
		}
		if id != s.active && msg.SenderID != s.local.ID && !confirmed {
			conv.UnreadCount++
		}
		s.sortConversationsLocked()
	}

	// A message from a user supersedes their typing indicator.
	if room := s.typing[id]; room != nil {
		delete(room, msg.SenderID)
	}
	s.mu.Unlock()

	s.persistMessages(id)
	s.notify(MessagesUpdated{ConversationID: id})
	s.notify(ConversationsUpdated{})
}

// IngestTyping applies a typing signal. Each upsert restarts an
// independent expiry, so an indicator disappears on its own when the
// sender goes quiet. The local user's own signals are ignored.
func (s *Store) IngestTyping(conversationID, userID, displayName string, isTyping bool) {
	if userID == s.local.ID {
		return
	}

	s.mu.Lock()
	room := s.typing[conversationID]
	if !isTyping {
		if room != nil {
			delete(room, userID)
		}
		s.mu.Unlock()
		s.notify(TypingUpdated{ConversationID: conversationID})
		return
	}

	if room == nil {
		room = make(map[string]model.TypingIndicator)
		s.typing[conversationID] = room
	}
	started := s.now()
	room[userID] = model.TypingIndicator{
		UserID:         userID,
		DisplayName:    displayName,
		ConversationID: conversationID,
		StartedAt:      started,
	}
	s.mu.Unlock()

	s.schedule(model.TypingTTL+50*time.Millisecond, func() {
		s.expireTyping(conversationID, userID, started)
	})
	s.notify(TypingUpdated{ConversationID: conversationID})
}

// expireTyping removes an indicator only if it was not refreshed since
// the expiry was armed.
func (s *Store) expireTyping(conversationID, userID string, started time.Time) {
	s.mu.Lock()
	room := s.typing[conversationID]
	ind, ok := room[userID]
	if !ok || !ind.StartedAt.Equal(started) {
		s.mu.Unlock()
		return
	}
	delete(room, userID)
	s.mu.Unlock()

	s.notify(TypingUpdated{ConversationID: conversationID})
}

// IngestPresence overwrites a user's presence record. Last write wins
// across push and poll; there is never more than one record per user.
func (s *Store) IngestPresence(rec model.PresenceRecord) {
	s.mu.Lock()
	s.presence[rec.UserID] = rec
	s.mu.Unlock()

	s.notify(PresenceUpdated{UserID: rec.UserID})
}

// =============================================================================
// PRESENCE POLLING
// =============================================================================

// presencePollLoop backstops push updates with a periodic REST fetch.
func (s *Store) presencePollLoop(ctx context.Context) {
	ticker := time.NewTicker(presencePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetchPresence(ctx)
		}
	}
}

// fetchPresence bulk-fetches presence for every visible participant.
// The API degrades to offline records rather than failing.
func (s *Store) fetchPresence(ctx context.Context) {
	ids := s.participantIDs()
	if len(ids) == 0 {
		return
	}
	for _, rec := range s.backend.BulkPresence(ctx, ids) {
		s.IngestPresence(rec)
	}
}

// participantIDs collects every user visible in the conversation list,
// excluding the local user.
func (s *Store) participantIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, conv := range s.convs {
		for _, p := range conv.Participants {
			if p.UserID == s.local.ID {
				continue
			}
			if _, ok := seen[p.UserID]; ok {
				continue
			}
			seen[p.UserID] = struct{}{}
			ids = append(ids, p.UserID)
		}
	}
	return ids
}
