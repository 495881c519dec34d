// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/realtime"
	"github.com/morganforge/relay-tui/internal/storage"
)

// Tunables for background reconciliation and typing throttling.
const (
	// reconcileDelay is how long after selecting a cached conversation
	// the background refresh runs.
	reconcileDelay = 2 * time.Second

	// presencePollInterval is the REST presence poll that backstops
	// push updates.
	presencePollInterval = 30 * time.Second

	// typingMinInterval throttles outgoing typing signals per session.
	typingMinInterval = 2 * time.Second
)

// ErrUnknownConversation is returned when an operation names a
// conversation the store has never seen.
var ErrUnknownConversation = errors.New("unknown conversation")

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Backend is the slice of the REST client the store uses. *api.Client
// satisfies it.
type Backend interface {
	Conversations(ctx context.Context) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, req api.CreateConversationRequest) (*model.Conversation, error)
	Participants(ctx context.Context, conversationID string) ([]model.Participant, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	Messages(ctx context.Context, conversationID string) ([]model.Message, error)
	SendMessage(ctx context.Context, conversationID string, req api.SendMessageRequest) (*model.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	NotifyTyping(ctx context.Context, conversationID string, isTyping bool) error
	BulkPresence(ctx context.Context, userIDs []string) []model.PresenceRecord
	InitiateUpload(ctx context.Context, req api.InitiateUploadRequest) (*api.UploadSession, error)
	UploadBytes(ctx context.Context, targetURL, contentType string, body io.Reader, size int64) error
	CompleteUpload(ctx context.Context, uploadID string) (*api.CompleteUploadResult, error)
	AssociateAttachment(ctx context.Context, attachmentID, messageID string) error
}

// Transport is the slice of the realtime manager the store uses.
// *realtime.Manager satisfies it.
type Transport interface {
	Subscribe(topic string, handler realtime.Handler)
	Unsubscribe(topic string)
	Publish(topic string, payload interface{}, qos byte, retain bool) error
	SetCategoryHandler(suffix string, handler realtime.Handler)
	SetConnectCallback(fn func())
	SetDisconnectCallback(fn func(err error))
	Connected() bool
}

// Phase is the per-conversation load state.
type Phase int

const (
	// PhaseUninitialized means no history has been requested yet.
	PhaseUninitialized Phase = iota
	// PhaseLoading means the first fetch is in flight with no cached
	// history to show.
	PhaseLoading
	// PhaseLoaded means history is present.
	PhaseLoaded
	// PhaseRefreshing means cached history is showing while a
	// background reconcile fetch runs.
	PhaseRefreshing
)

// =============================================================================
// STORE
// =============================================================================

// Store is the conversation state shared by all views.
type Store struct {
	mu sync.Mutex

	backend Backend
	rt      Transport
	cache   *storage.Cache
	local   model.User
	notify  func(Event)

	convs     []*model.Conversation
	convIndex map[string]*model.Conversation
	loaded    bool
	degraded  bool

	messages map[string][]*model.Message
	seenIDs  map[string]map[string]struct{}
	phases   map[string]Phase

	active     string
	subscribed map[string]struct{}

	presence map[string]model.PresenceRecord
	typing   map[string]map[string]model.TypingIndicator

	typingLimit *rate.Limiter

	// Test hooks.
	now      func() time.Time
	sleep    func(time.Duration)
	schedule func(time.Duration, func())
}

// Options wires the store's collaborators. Cache and Notify may be nil.
type Options struct {
	Backend   Backend
	Transport Transport
	Cache     *storage.Cache
	LocalUser model.User
	Notify    func(Event)
}

// New creates an empty store.
func New(opts Options) *Store {
	notify := opts.Notify
	if notify == nil {
		notify = func(Event) {}
	}
	return &Store{
		backend:     opts.Backend,
		rt:          opts.Transport,
		cache:       opts.Cache,
		local:       opts.LocalUser,
		notify:      notify,
		convIndex:   make(map[string]*model.Conversation),
		messages:    make(map[string][]*model.Message),
		seenIDs:     make(map[string]map[string]struct{}),
		phases:      make(map[string]Phase),
		subscribed:  make(map[string]struct{}),
		presence:    make(map[string]model.PresenceRecord),
		typing:      make(map[string]map[string]model.TypingIndicator),
		typingLimit: rate.NewLimiter(rate.Every(typingMinInterval), 1),
		now:         time.Now,
		sleep:       time.Sleep,
		schedule:    func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Conversations returns a snapshot of the list, most recently active
// first.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, copyConversation(c))
	}
	return out
}

// Conversation returns a snapshot of one conversation.
func (s *Store) Conversation(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convIndex[id]
	if !ok {
		return model.Conversation{}, false
	}
	return copyConversation(c), true
}

// Messages returns a snapshot of one conversation's thread in
// chronological order.
func (s *Store) Messages(conversationID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, copyMessage(m))
	}
	return out
}

// ActiveConversation returns the ID of the open conversation, empty
// when none is selected.
func (s *Store) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// PhaseOf returns a conversation's load state.
func (s *Store) PhaseOf(conversationID string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[conversationID]
}

// Degraded reports whether the last conversation load failed and the
// list is a stale snapshot.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Presence returns the last known presence for a user, defaulting to
// offline.
func (s *Store) Presence(userID string) model.PresenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.presence[userID]; ok {
		return rec
	}
	return model.OfflinePresence(userID)
}

// TypingIndicators returns who is typing in a conversation, oldest
// first. Expired entries are pruned on read.
func (s *Store) TypingIndicators(conversationID string) []model.TypingIndicator {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.TypingIndicator
	for userID, ind := range s.typing[conversationID] {
		if ind.Expired(now) {
			delete(s.typing[conversationID], userID)
			continue
		}
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// LocalUser returns the signed-in user this store belongs to.
func (s *Store) LocalUser() model.User {
	return s.local
}

// =============================================================================
// SNAPSHOT COPIES
// =============================================================================

func copyConversation(c *model.Conversation) model.Conversation {
	out := *c
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	out.Participants = append([]model.Participant(nil), c.Participants...)
	return out
}

func copyMessage(m *model.Message) model.Message {
	out := *m
	if m.Attachment != nil {
		att := *m.Attachment
		out.Attachment = &att
	}
	return out
}
