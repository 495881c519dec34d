// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/realtime"
	"github.com/morganforge/relay-tui/internal/storage"
)

// =============================================================================
// STARTUP
// =============================================================================

// Start wires realtime routing, restores the local snapshot and begins
// the presence poll. The poll stops when ctx is cancelled.
func (s *Store) Start(ctx context.Context) {
	if s.rt != nil {
		s.rt.SetCategoryHandler(realtime.SuffixMessages, s.handleMessagePayload)
		s.rt.SetCategoryHandler(realtime.SuffixTyping, s.handleTypingPayload)
		s.rt.SetCategoryHandler(realtime.SuffixStatus, s.handlePresencePayload)
		s.rt.SetConnectCallback(s.handleTransportConnect)
		s.rt.SetDisconnectCallback(s.handleTransportLost)
	}

	s.restoreSnapshot()

	go s.presencePollLoop(ctx)
}

// restoreSnapshot paints the last persisted state before any backend
// answers.
func (s *Store) restoreSnapshot() {
	if s.cache == nil {
		return
	}

	convs, err := s.cache.Conversations()
	if err != nil {
		if !errors.Is(err, storage.ErrNotCached) {
			logging.L().Warn("failed to restore conversation snapshot", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.replaceConversationsLocked(convs)
	s.mu.Unlock()

	if active, err := s.cache.ActiveConversation(); err == nil {
		if msgs, err := s.cache.Messages(active); err == nil {
			s.mu.Lock()
			if _, ok := s.convIndex[active]; ok {
				s.active = active
				s.setMessagesLocked(active, msgs)
				s.phases[active] = PhaseLoaded
			}
			s.mu.Unlock()
		}
	}

	s.notify(ConversationsUpdated{})
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// LoadConversations fetches the conversation list. Unless force is set,
// a list that is already loaded is not refetched. A fetch failure is
// non-fatal: the current (possibly cached) list is preserved, the store
// is flagged degraded and the error returned for the banner.
func (s *Store) LoadConversations(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.loaded && !force {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	convs, err := s.backend.Conversations(ctx)
	if err != nil {
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
		s.notify(ConversationsUpdated{})
		return fmt.Errorf("failed to load conversations: %w", err)
	}

	s.mu.Lock()
	s.replaceConversationsLocked(convs)
	s.loaded = true
	s.degraded = false
	s.mu.Unlock()

	s.persistConversations()
	s.notify(ConversationsUpdated{})

	// Presence for everyone visible in the list, best effort.
	s.fetchPresence(ctx)
	return nil
}

// replaceConversationsLocked swaps in a fetched list while keeping
// message history and phases for conversations that survive.
func (s *Store) replaceConversationsLocked(convs []model.Conversation) {
	s.convs = s.convs[:0]
	s.convIndex = make(map[string]*model.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		s.convs = append(s.convs, &c)
		s.convIndex[c.ID] = &c
	}
	s.sortConversationsLocked()
}

// sortConversationsLocked orders by most recent activity.
func (s *Store) sortConversationsLocked() {
	sort.SliceStable(s.convs, func(i, j int) bool {
		return s.convs[i].UpdatedAt.After(s.convs[j].UpdatedAt)
	})
}

// StartConversation opens a direct thread with the named user, creating
// it on the backend unless a direct thread with that user already
// exists locally. Returns the conversation ID ready for selection.
func (s *Store) StartConversation(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("no username given")
	}
	if username == s.local.Username {
		return "", errors.New("cannot start a conversation with yourself")
	}

	user, err := s.backend.UserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", username, err)
	}

	s.mu.Lock()
	for _, c := range s.convs {
		if c.Type == model.ConversationDirect && c.HasParticipant(user.ID) {
			id := c.ID
			s.mu.Unlock()
			return id, nil
		}
	}
	s.mu.Unlock()

	conv, err := s.backend.CreateConversation(ctx, api.CreateConversationRequest{
		Type:           model.ConversationDirect,
		ParticipantIDs: []string{user.ID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.convIndex[conv.ID]; !ok {
		c := *conv
		s.convs = append(s.convs, &c)
		s.convIndex[c.ID] = &c
		s.sortConversationsLocked()
	}
	s.mu.Unlock()

	s.persistConversations()
	s.notify(ConversationsUpdated{})
	return conv.ID, nil
}

// =============================================================================
// CONVERSATION SELECTION
// =============================================================================

// SelectConversation opens a conversation: cached history shows
// immediately and a delayed background reconcile refreshes it; only a
// conversation with no cache at all blocks on the fetch. Selection also
// subscribes the realtime topics and marks the thread read. Selecting
// an already-loaded conversation never refetches inline.
func (s *Store) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	conv, ok := s.convIndex[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownConversation
	}
	s.active = id
	// List payloads denormalize membership to a count; the full records
	// arrive on first open.
	needParticipants := len(conv.Participants) == 0 && conv.ParticipantCount > 0
	phase := s.phases[id]
	if phase == PhaseUninitialized {
		if s.loadCachedMessagesLocked(id) {
			phase = PhaseLoaded
			s.phases[id] = PhaseLoaded
		} else {
			s.phases[id] = PhaseLoading
		}
	}
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SetActiveConversation(id); err != nil {
			logging.L().Warn("failed to persist active conversation", zap.Error(err))
		}
	}

	if needParticipants {
		s.loadParticipants(ctx, id)
	}

	s.subscribeConversation(id)

	switch phase {
	case PhaseLoaded, PhaseRefreshing:
		s.scheduleReconcile(id)
	case PhaseLoading, PhaseUninitialized:
		if err := s.refreshMessages(ctx, id); err != nil {
			s.mu.Lock()
			s.phases[id] = PhaseUninitialized
			s.mu.Unlock()
			return err
		}
	}

	s.markRead(ctx, id)
	s.notify(MessagesUpdated{ConversationID: id})
	return nil
}

// loadParticipants hydrates a conversation's membership records, best
// effort: on failure the sidebar stays empty and the next select
// retries. Success refreshes presence for the new faces.
func (s *Store) loadParticipants(ctx context.Context, id string) {
	parts, err := s.backend.Participants(ctx, id)
	if err != nil {
		logging.L().Warn("failed to load participants",
			zap.String("conversation", id), zap.Error(err))
		return
	}

	s.mu.Lock()
	conv, ok := s.convIndex[id]
	if ok {
		conv.Participants = parts
		if conv.ParticipantCount < len(parts) {
			conv.ParticipantCount = len(parts)
		}
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.persistConversations()
	s.notify(ConversationsUpdated{})
	s.fetchPresence(ctx)
}

// loadCachedMessagesLocked pulls the SQLite snapshot for a conversation
// into memory. Returns false when there is no snapshot.
func (s *Store) loadCachedMessagesLocked(id string) bool {
	if s.cache == nil {
		return false
	}
	msgs, err := s.cache.Messages(id)
	if err != nil {
		return false
	}
	s.setMessagesLocked(id, msgs)
	return true
}

// setMessagesLocked replaces a thread and rebuilds its dedupe index,
// keeping any local pending entries that the fetched history cannot
// know about.
func (s *Store) setMessagesLocked(id string, msgs []model.Message) {
	var pending []*model.Message
	for _, m := range s.messages[id] {
		if m.IsPending() {
			pending = append(pending, m)
		}
	}

	seen := make(map[string]struct{}, len(msgs))
	thread := make([]*model.Message, 0, len(msgs)+len(pending))
	for i := range msgs {
		m := msgs[i]
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		thread = append(thread, &m)
	}
	for _, p := range pending {
		thread = append(thread, p)
		seen[p.ID] = struct{}{}
	}

	s.messages[id] = thread
	s.seenIDs[id] = seen
}

// scheduleReconcile runs a background refresh for a cached thread after
// a short delay, so rapid conversation switching does not fan out
// fetches.
func (s *Store) scheduleReconcile(id string) {
	s.mu.Lock()
	if s.phases[id] == PhaseRefreshing {
		s.mu.Unlock()
		return
	}
	s.phases[id] = PhaseRefreshing
	s.mu.Unlock()

	s.schedule(reconcileDelay, func() {
		if err := s.refreshMessages(context.Background(), id); err != nil {
			logging.L().Warn("background reconcile failed",
				zap.String("conversation", id), zap.Error(err))
		}
		s.notify(MessagesUpdated{ConversationID: id})
	})
}

// refreshMessages fetches authoritative history and reconciles it with
// local state.
func (s *Store) refreshMessages(ctx context.Context, id string) error {
	msgs, err := s.backend.Messages(ctx, id)
	if err != nil {
		s.mu.Lock()
		if s.phases[id] == PhaseRefreshing {
			s.phases[id] = PhaseLoaded
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to load messages: %w", err)
	}

	s.mu.Lock()
	s.setMessagesLocked(id, msgs)
	s.phases[id] = PhaseLoaded
	if conv, ok := s.convIndex[id]; ok && len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		conv.SetLastMessage(&last)
	}
	s.mu.Unlock()

	s.persistMessages(id)
	return nil
}

// subscribeConversation registers the message and typing topics once.
func (s *Store) subscribeConversation(id string) {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	if _, ok := s.subscribed[id]; ok {
		s.mu.Unlock()
		return
	}
	s.subscribed[id] = struct{}{}
	s.mu.Unlock()

	s.rt.Subscribe(realtime.MessagesTopic(id), s.handleMessagePayload)
	s.rt.Subscribe(realtime.TypingTopic(id), s.handleTypingPayload)
}

// markRead clears the local unread badge and tells the chat service,
// best effort.
func (s *Store) markRead(ctx context.Context, id string) {
	s.mu.Lock()
	if conv, ok := s.convIndex[id]; ok && conv.UnreadCount != 0 {
		conv.UnreadCount = 0
	}
	s.mu.Unlock()

	if err := s.backend.MarkRead(ctx, id); err != nil {
		logging.L().Debug("mark read failed", zap.String("conversation", id), zap.Error(err))
	}
	s.notify(ConversationsUpdated{})
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persistConversations writes the list snapshot, best effort.
func (s *Store) persistConversations() {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveConversations(s.Conversations()); err != nil {
		logging.L().Warn("failed to persist conversation snapshot", zap.Error(err))
	}
}

// persistMessages writes one thread's snapshot, best effort. Pending
// entries are local-only and excluded.
func (s *Store) persistMessages(id string) {
	if s.cache == nil {
		return
	}
	var accepted []model.Message
	for _, m := range s.Messages(id) {
		if m.State != model.DeliveryPending && m.State != model.DeliveryFailed {
			accepted = append(accepted, m)
		}
	}
	if err := s.cache.SaveMessages(id, accepted); err != nil {
		logging.L().Warn("failed to persist message snapshot",
			zap.String("conversation", id), zap.Error(err))
	}
}
