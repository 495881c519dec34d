// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/realtime"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeBackend struct {
	mu sync.Mutex

	convs   []model.Conversation
	convErr error

	participants map[string][]model.Participant
	partCalls    map[string]int

	users     map[string]model.User
	created   []api.CreateConversationRequest
	createErr error

	msgs     map[string][]model.Message
	msgCalls map[string]int

	sendErr   error
	sent      []api.SendMessageRequest
	nextMsgID int

	uploads       int
	uploadedBytes int64
	associateErrs []error
	associates    int

	typingCalls int
	presenceIDs []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		participants: make(map[string][]model.Participant),
		partCalls:    make(map[string]int),
		users:        make(map[string]model.User),
		msgs:         make(map[string][]model.Message),
		msgCalls:     make(map[string]int),
	}
}

func (f *fakeBackend) Conversations(context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convErr != nil {
		return nil, f.convErr
	}
	return append([]model.Conversation(nil), f.convs...), nil
}

func (f *fakeBackend) CreateConversation(_ context.Context, req api.CreateConversationRequest) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	conv := model.Conversation{
		ID:   "conv-" + strconv.Itoa(len(f.created)),
		Type: req.Type,
	}
	conv.Participants = append(conv.Participants, model.Participant{UserID: "me", DisplayName: "Me"})
	for _, id := range req.ParticipantIDs {
		conv.Participants = append(conv.Participants, model.Participant{UserID: id, DisplayName: id})
	}
	conv.ParticipantCount = len(conv.Participants)
	return &conv, nil
}

func (f *fakeBackend) Participants(_ context.Context, id string) ([]model.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partCalls[id]++
	return append([]model.Participant(nil), f.participants[id]...), nil
}

func (f *fakeBackend) UserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[username]; ok {
		return &user, nil
	}
	return nil, &api.APIError{Status: 404, Code: "not_found", Message: "no such user"}
}

func (f *fakeBackend) Messages(_ context.Context, id string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgCalls[id]++
	return append([]model.Message(nil), f.msgs[id]...), nil
}

func (f *fakeBackend) SendMessage(_ context.Context, id string, req api.SendMessageRequest) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextMsgID++
	return &model.Message{
		ID:             "srv-" + strconv.Itoa(f.nextMsgID),
		ConversationID: id,
		Content:        req.Content,
		ContentType:    req.ContentType,
		DedupeKey:      req.DedupeKey,
		SentAt:         time.Now(),
	}, nil
}

func (f *fakeBackend) MarkRead(context.Context, string) error { return nil }

func (f *fakeBackend) NotifyTyping(context.Context, string, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingCalls++
	return nil
}

func (f *fakeBackend) BulkPresence(_ context.Context, ids []string) []model.PresenceRecord {
	f.mu.Lock()
	f.presenceIDs = append(f.presenceIDs, ids...)
	f.mu.Unlock()
	recs := make([]model.PresenceRecord, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, model.OfflinePresence(id))
	}
	return recs
}

func (f *fakeBackend) InitiateUpload(context.Context, api.InitiateUploadRequest) (*api.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return &api.UploadSession{UploadID: "up-1", TargetURL: "https://blob.example/up-1"}, nil
}

func (f *fakeBackend) UploadBytes(_ context.Context, _, _ string, body io.Reader, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadedBytes += size
	return nil
}

func (f *fakeBackend) CompleteUpload(context.Context, string) (*api.CompleteUploadResult, error) {
	return &api.CompleteUploadResult{AttachmentID: "att-1"}, nil
}

func (f *fakeBackend) AssociateAttachment(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.associates++
	if len(f.associateErrs) > 0 {
		err := f.associateErrs[0]
		f.associateErrs = f.associateErrs[1:]
		return err
	}
	return nil
}

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	subs      []string
	published []string
}

func (f *fakeTransport) Subscribe(topic string, _ realtime.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, topic)
}
func (f *fakeTransport) Unsubscribe(string) {}
func (f *fakeTransport) Publish(topic string, _ interface{}, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return realtime.ErrNotConnected
	}
	f.published = append(f.published, topic)
	return nil
}
func (f *fakeTransport) SetCategoryHandler(string, realtime.Handler) {}
func (f *fakeTransport) SetConnectCallback(func())                  {}
func (f *fakeTransport) SetDisconnectCallback(func(error))          {}
func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	store   *Store
	backend *fakeBackend
	rt      *fakeTransport
	events  []Event
	clock   time.Time
	slept   []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		rt:      &fakeTransport{},
		clock:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	h.store = New(Options{
		Backend:   h.backend,
		Transport: h.rt,
		LocalUser: model.User{ID: "me", Username: "me", DisplayName: "Me"},
		Notify:    func(e Event) { h.events = append(h.events, e) },
	})
	h.store.now = func() time.Time { return h.clock }
	h.store.sleep = func(d time.Duration) { h.slept = append(h.slept, d) }
	// Background reconciles run inline scheduling decisions only; tests
	// trigger refreshes explicitly.
	h.store.schedule = func(time.Duration, func()) {}
	return h
}

func (h *harness) seedConversations(t *testing.T, convs ...model.Conversation) {
	t.Helper()
	h.backend.convs = convs
	if err := h.store.LoadConversations(context.Background(), false); err != nil {
		t.Fatalf("LoadConversations: %v", err)
	}
}

func conv(id string, participants ...string) model.Conversation {
	c := model.Conversation{ID: id, Type: model.ConversationGroup, Title: id}
	for _, p := range participants {
		c.Participants = append(c.Participants, model.Participant{UserID: p, DisplayName: p})
	}
	return c
}

// =============================================================================
// INGESTION
// =============================================================================

func TestDuplicatePushEventsIngestOnce(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	msg := model.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", Content: "hi", SentAt: h.clock}
	h.store.IngestMessage(msg)
	h.store.IngestMessage(msg)
	h.store.IngestMessage(msg)

	if got := h.store.Messages("c1"); len(got) != 1 {
		t.Errorf("thread has %d entries, want 1", len(got))
	}
}

func TestPushConfirmsPendingByDedupeKey(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	// Block the REST confirm so the push event races ahead.
	h.backend.sendErr = errors.New("slow")
	_ = h.store.SendMessage(context.Background(), "c1", "race")
	// Rollback removed the entry; re-create a pending one directly.
	pending := model.NewPendingMessage("c1", "me", "race")
	h.store.appendMessage(pending)

	h.store.IngestMessage(model.Message{
		ID:             "srv-9",
		ConversationID: "c1",
		SenderID:       "me",
		Content:        "race",
		DedupeKey:      pending.DedupeKey,
		SentAt:         h.clock,
	})

	got := h.store.Messages("c1")
	if len(got) != 1 {
		t.Fatalf("thread has %d entries, want 1", len(got))
	}
	if got[0].ID != "srv-9" || got[0].State != model.DeliveryAccepted {
		t.Errorf("entry = %+v, want confirmed server identity", got[0])
	}
}

func TestPresenceKeepsOneRecordPerUser(t *testing.T) {
	h := newHarness(t)

	h.store.IngestPresence(model.PresenceRecord{UserID: "u2", Status: model.PresenceOnline})
	h.store.IngestPresence(model.PresenceRecord{UserID: "u2", Status: model.PresenceAway, StatusText: "lunch"})

	rec := h.store.Presence("u2")
	if rec.Status != model.PresenceAway || rec.StatusText != "lunch" {
		t.Errorf("presence = %+v, want the last write", rec)
	}

	h.store.mu.Lock()
	n := len(h.store.presence)
	h.store.mu.Unlock()
	if n != 1 {
		t.Errorf("presence map has %d entries, want 1", n)
	}
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	h := newHarness(t)

	h.store.IngestTyping("c1", "u2", "Bob", true)
	if got := h.store.TypingIndicators("c1"); len(got) != 1 {
		t.Fatalf("indicators = %d, want 1", len(got))
	}

	// Just inside the TTL the indicator survives.
	h.clock = h.clock.Add(model.TypingTTL - time.Millisecond)
	if got := h.store.TypingIndicators("c1"); len(got) != 1 {
		t.Errorf("indicator expired early")
	}

	h.clock = h.clock.Add(2 * time.Millisecond)
	if got := h.store.TypingIndicators("c1"); len(got) != 0 {
		t.Errorf("indicator survived past TTL: %+v", got)
	}
}

func TestTypingRefreshRestartsExpiry(t *testing.T) {
	h := newHarness(t)

	h.store.IngestTyping("c1", "u2", "Bob", true)
	first := h.clock

	h.clock = h.clock.Add(3 * time.Second)
	h.store.IngestTyping("c1", "u2", "Bob", true)

	// The stale expiry must not remove the refreshed indicator.
	h.store.expireTyping("c1", "u2", first)
	if got := h.store.TypingIndicators("c1"); len(got) != 1 {
		t.Errorf("refreshed indicator was expired by the stale timer")
	}
}

func TestLocalUserTypingIgnored(t *testing.T) {
	h := newHarness(t)

	h.store.IngestTyping("c1", "me", "Me", true)
	if got := h.store.TypingIndicators("c1"); len(got) != 0 {
		t.Errorf("local user's own typing signal was stored")
	}
}

func TestStopEventRemovesTyping(t *testing.T) {
	h := newHarness(t)

	h.store.IngestTyping("c1", "u2", "Bob", true)
	h.store.IngestTyping("c1", "u2", "Bob", false)
	if got := h.store.TypingIndicators("c1"); len(got) != 0 {
		t.Errorf("stop event did not remove indicator")
	}
}

func TestUnreadCountsOnlyInactiveConversations(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"), conv("c2", "u2"))
	if err := h.store.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("SelectConversation: %v", err)
	}

	h.store.IngestMessage(model.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", SentAt: h.clock})
	h.store.IngestMessage(model.Message{ID: "m2", ConversationID: "c2", SenderID: "u2", SentAt: h.clock})

	active, _ := h.store.Conversation("c1")
	other, _ := h.store.Conversation("c2")
	if active.UnreadCount != 0 {
		t.Errorf("active conversation unread = %d, want 0", active.UnreadCount)
	}
	if other.UnreadCount != 1 {
		t.Errorf("background conversation unread = %d, want 1", other.UnreadCount)
	}
}

// =============================================================================
// SENDING
// =============================================================================

func TestSendMessagePayloadAndLatestPointer(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	if err := h.store.SendMessage(context.Background(), "c1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := h.store.SendMessage(context.Background(), "c1", "again"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if len(h.backend.sent) != 2 {
		t.Fatalf("sent %d requests, want 2", len(h.backend.sent))
	}
	for _, req := range h.backend.sent {
		if req.ContentType != model.ContentTypeText {
			t.Errorf("content_type = %q, want %q", req.ContentType, model.ContentTypeText)
		}
		if req.DedupeKey == "" {
			t.Error("dedupe key missing")
		}
	}
	if h.backend.sent[0].DedupeKey == h.backend.sent[1].DedupeKey {
		t.Error("dedupe keys not unique per send")
	}

	c, _ := h.store.Conversation("c1")
	if c.LastMessage == nil || c.LastMessage.Content != "again" {
		t.Errorf("latest-message pointer = %+v, want the confirmed send", c.LastMessage)
	}
}

func TestSendMessageRollbackRestoresComposer(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))
	h.backend.sendErr = errors.New("chat service down")

	err := h.store.SendMessage(context.Background(), "c1", "doomed")
	if err == nil {
		t.Fatal("SendMessage succeeded, want error")
	}

	if got := h.store.Messages("c1"); len(got) != 0 {
		t.Errorf("tentative entry not rolled back: %+v", got)
	}

	var failed *SendFailed
	for i := range h.events {
		if e, ok := h.events[i].(SendFailed); ok {
			failed = &e
		}
	}
	if failed == nil {
		t.Fatal("no SendFailed event emitted")
	}
	if failed.Content != "doomed" {
		t.Errorf("SendFailed.Content = %q, want original text", failed.Content)
	}
}

func TestBlankMessageNotSent(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	if err := h.store.SendMessage(context.Background(), "c1", "   \n"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(h.backend.sent) != 0 {
		t.Errorf("blank content reached the backend")
	}
}

func TestTypingIndicatorRateLimited(t *testing.T) {
	h := newHarness(t)
	h.rt.connected = true

	for i := 0; i < 5; i++ {
		h.store.SendTypingIndicator(context.Background(), "c1")
	}

	h.rt.mu.Lock()
	n := len(h.rt.published)
	h.rt.mu.Unlock()
	if n != 1 {
		t.Errorf("published %d typing signals, want 1 within the limit window", n)
	}
}

// =============================================================================
// UPLOADS
// =============================================================================

func fkErr() error {
	return &api.APIError{Status: 409, Code: "foreign_key_violation", Message: "message row not visible"}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestUploadRetriesForeignKeyViolation(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	for i := 0; i < 9; i++ {
		h.backend.associateErrs = append(h.backend.associateErrs, fkErr())
	}

	path := writeTempFile(t, "report.txt", "contents")
	if err := h.store.SendMessageWithFiles(context.Background(), "c1", "see attached", []string{path}); err != nil {
		t.Fatalf("SendMessageWithFiles: %v", err)
	}

	if h.backend.associates != 10 {
		t.Errorf("associate attempts = %d, want 10", h.backend.associates)
	}
	if len(h.slept) != 9 {
		t.Errorf("backoff sleeps = %d, want 9", len(h.slept))
	}
	for _, d := range h.slept {
		if d != uploadRetryBackoff {
			t.Errorf("backoff = %v, want %v", d, uploadRetryBackoff)
		}
	}

	msgs := h.store.Messages("c1")
	if len(msgs) != 1 {
		t.Fatalf("thread has %d entries, want 1", len(msgs))
	}
	if msgs[0].Attachment == nil || msgs[0].Attachment.Status != model.UploadStatusReady {
		t.Errorf("attachment = %+v, want ready", msgs[0].Attachment)
	}
}

func TestUploadFailsAfterRetryBudget(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	for i := 0; i < 10; i++ {
		h.backend.associateErrs = append(h.backend.associateErrs, fkErr())
	}

	path := writeTempFile(t, "report.txt", "contents")
	err := h.store.SendMessageWithFiles(context.Background(), "c1", "", []string{path})
	if err == nil {
		t.Fatal("SendMessageWithFiles succeeded, want error after retry budget")
	}
	if h.backend.associates != 10 {
		t.Errorf("associate attempts = %d, want exactly 10", h.backend.associates)
	}

	msgs := h.store.Messages("c1")
	if len(msgs) != 1 || msgs[0].State != model.DeliveryFailed {
		t.Errorf("row not marked failed: %+v", msgs)
	}
}

func TestUploadNonRetryableErrorFailsImmediately(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	h.backend.associateErrs = append(h.backend.associateErrs,
		&api.APIError{Status: 500, Code: "internal", Message: "boom"})

	path := writeTempFile(t, "report.txt", "contents")
	if err := h.store.SendMessageWithFiles(context.Background(), "c1", "", []string{path}); err == nil {
		t.Fatal("want error for non-retryable failure")
	}
	if h.backend.associates != 1 {
		t.Errorf("associate attempts = %d, want 1", h.backend.associates)
	}
}

// =============================================================================
// LOADING AND SELECTION
// =============================================================================

func TestLoadFailurePreservesListAndFlagsDegraded(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"), conv("c2", "u3"))

	h.backend.convErr = errors.New("chat service down")
	err := h.store.LoadConversations(context.Background(), true)
	if err == nil {
		t.Fatal("forced reload succeeded, want error")
	}

	if got := h.store.Conversations(); len(got) != 2 {
		t.Errorf("list shrank to %d entries on failure, want 2 preserved", len(got))
	}
	if !h.store.Degraded() {
		t.Error("store not flagged degraded")
	}

	// Recovery clears the flag.
	h.backend.convErr = nil
	if err := h.store.LoadConversations(context.Background(), true); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if h.store.Degraded() {
		t.Error("degraded flag survived a successful reload")
	}
}

func TestLoadIsIdempotentWithoutForce(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	h.backend.convErr = errors.New("should not be called")
	if err := h.store.LoadConversations(context.Background(), false); err != nil {
		t.Errorf("second unforced load hit the backend: %v", err)
	}
}

func TestSelectTwiceIssuesNoDuplicateFetch(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))
	h.backend.msgs["c1"] = []model.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "u2", Content: "hi", SentAt: h.clock},
	}

	if err := h.store.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("SelectConversation: %v", err)
	}
	if err := h.store.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("second SelectConversation: %v", err)
	}

	if n := h.backend.msgCalls["c1"]; n != 1 {
		t.Errorf("message fetches = %d, want 1", n)
	}
	if got := h.store.Messages("c1"); len(got) != 1 {
		t.Errorf("thread = %d entries, want 1", len(got))
	}
}

func TestSelectSubscribesTopicsOnce(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	_ = h.store.SelectConversation(context.Background(), "c1")
	_ = h.store.SelectConversation(context.Background(), "c1")

	h.rt.mu.Lock()
	defer h.rt.mu.Unlock()
	count := 0
	for _, topic := range h.rt.subs {
		if topic == realtime.MessagesTopic("c1") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("message topic subscribed %d times, want 1", count)
	}
}

func TestSelectUnknownConversation(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t, conv("c1", "u2"))

	if err := h.store.SelectConversation(context.Background(), "ghost"); !errors.Is(err, ErrUnknownConversation) {
		t.Errorf("err = %v, want ErrUnknownConversation", err)
	}
}

func TestSelectHydratesCountOnlyParticipants(t *testing.T) {
	h := newHarness(t)
	h.backend.participants["c1"] = []model.Participant{
		{UserID: "me", DisplayName: "Me"},
		{UserID: "u2", DisplayName: "Bob"},
	}
	h.seedConversations(t, model.Conversation{
		ID: "c1", Type: model.ConversationGroup, Title: "c1", ParticipantCount: 2,
	})

	if err := h.store.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("SelectConversation: %v", err)
	}

	c, _ := h.store.Conversation("c1")
	if len(c.Participants) != 2 {
		t.Fatalf("participants = %d, want 2 after select", len(c.Participants))
	}
	if got := c.DisplayTitle("me"); got != "c1" {
		t.Errorf("DisplayTitle = %q", got)
	}

	// The hydrated members join the presence sweep.
	found := false
	for _, id := range h.backend.presenceIDs {
		if id == "u2" {
			found = true
		}
	}
	if !found {
		t.Error("presence never fetched for hydrated participant u2")
	}

	// A second select works from the cached membership.
	if err := h.store.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("second SelectConversation: %v", err)
	}
	if n := h.backend.partCalls["c1"]; n != 1 {
		t.Errorf("participant fetches = %d, want 1", n)
	}
}

func TestSelectSkipsParticipantFetchWhenListCarriesThem(t *testing.T) {
	h := newHarness(t)
	c := conv("c1", "u2")
	c.ParticipantCount = len(c.Participants)
	h.seedConversations(t, c)

	if err := h.store.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("SelectConversation: %v", err)
	}
	if n := h.backend.partCalls["c1"]; n != 0 {
		t.Errorf("participant fetches = %d, want 0 for a populated list entry", n)
	}
}

// =============================================================================
// STARTING CONVERSATIONS
// =============================================================================

func TestStartConversationCreatesDirectThread(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t)
	h.backend.users["bob"] = model.User{ID: "u-bob", Username: "bob", DisplayName: "Bob"}

	id, err := h.store.StartConversation(context.Background(), "bob")
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if id == "" {
		t.Fatal("empty conversation ID")
	}

	if len(h.backend.created) != 1 {
		t.Fatalf("created %d conversations, want 1", len(h.backend.created))
	}
	req := h.backend.created[0]
	if req.Type != model.ConversationDirect {
		t.Errorf("type = %q, want direct", req.Type)
	}
	if len(req.ParticipantIDs) != 1 || req.ParticipantIDs[0] != "u-bob" {
		t.Errorf("participant_ids = %v, want the resolved peer", req.ParticipantIDs)
	}

	c, ok := h.store.Conversation(id)
	if !ok {
		t.Fatal("created conversation not in the list")
	}
	if !c.HasParticipant("u-bob") {
		t.Errorf("conversation lacks the peer: %+v", c.Participants)
	}

	if err := h.store.SelectConversation(context.Background(), id); err != nil {
		t.Errorf("selecting the new conversation: %v", err)
	}
}

func TestStartConversationReusesExistingDirect(t *testing.T) {
	h := newHarness(t)
	existing := conv("c1", "u-bob")
	existing.Type = model.ConversationDirect
	h.seedConversations(t, existing)
	h.backend.users["bob"] = model.User{ID: "u-bob", Username: "bob", DisplayName: "Bob"}

	id, err := h.store.StartConversation(context.Background(), "bob")
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if id != "c1" {
		t.Errorf("id = %q, want the existing thread c1", id)
	}
	if len(h.backend.created) != 0 {
		t.Errorf("created a duplicate direct thread")
	}
}

func TestStartConversationRejectsUnknownAndSelf(t *testing.T) {
	h := newHarness(t)
	h.seedConversations(t)

	if _, err := h.store.StartConversation(context.Background(), "ghost"); err == nil {
		t.Error("unknown username accepted")
	}
	if _, err := h.store.StartConversation(context.Background(), "me"); err == nil {
		t.Error("conversation with self accepted")
	}
	if _, err := h.store.StartConversation(context.Background(), "  "); err == nil {
		t.Error("blank username accepted")
	}
	if len(h.backend.created) != 0 {
		t.Errorf("backend reached for invalid input")
	}
}
