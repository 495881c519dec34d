// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/relay-tui/internal/model"
)

func openTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(dir, "u1")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, dir
}

func TestEmptyCacheReportsNotCached(t *testing.T) {
	c, _ := openTestCache(t)

	_, err := c.Conversations()
	assert.ErrorIs(t, err, ErrNotCached)
	_, err = c.Messages("c1")
	assert.ErrorIs(t, err, ErrNotCached)
	_, err = c.ActiveConversation()
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestConversationSnapshotRoundTrip(t *testing.T) {
	c, _ := openTestCache(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	convs := []model.Conversation{
		{
			ID:        "c-old",
			Type:      model.ConversationGroup,
			Title:     "platform",
			UpdatedAt: base,
			Participants: []model.Participant{
				{UserID: "u1", DisplayName: "Alice"},
				{UserID: "u2", DisplayName: "Bob"},
			},
		},
		{
			ID:        "c-new",
			Type:      model.ConversationDirect,
			UpdatedAt: base.Add(time.Hour),
		},
	}
	require.NoError(t, c.SaveConversations(convs))

	got, err := c.Conversations()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-new", got[0].ID, "most recently updated first")
	assert.Equal(t, "c-old", got[1].ID)
	require.Len(t, got[1].Participants, 2)
	assert.Equal(t, "Alice", got[1].Participants[0].DisplayName)
}

func TestSaveConversationsReplacesSnapshot(t *testing.T) {
	c, _ := openTestCache(t)

	require.NoError(t, c.SaveConversations([]model.Conversation{{ID: "c1"}, {ID: "c2"}}))
	require.NoError(t, c.SaveConversations([]model.Conversation{{ID: "c3"}}))

	got, err := c.Conversations()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c3", got[0].ID)
}

func TestMessageSnapshotRoundTrip(t *testing.T) {
	c, _ := openTestCache(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msgs := []model.Message{
		{ID: "m2", ConversationID: "c1", Content: "second", SentAt: base.Add(time.Minute)},
		{ID: "m1", ConversationID: "c1", Content: "first", SentAt: base},
	}
	require.NoError(t, c.SaveMessages("c1", msgs))
	require.NoError(t, c.SaveMessages("c2", []model.Message{
		{ID: "m9", ConversationID: "c2", Content: "other room", SentAt: base},
	}))

	got, err := c.Messages("c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID, "chronological order")
	assert.Equal(t, "m2", got[1].ID)

	other, err := c.Messages("c2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "other room", other[0].Content)
}

func TestActiveConversationRoundTrip(t *testing.T) {
	c, _ := openTestCache(t)

	require.NoError(t, c.SetActiveConversation("c1"))
	require.NoError(t, c.SetActiveConversation("c2"))

	got, err := c.ActiveConversation()
	require.NoError(t, err)
	assert.Equal(t, "c2", got)
}

func TestClearEmptiesAllTables(t *testing.T) {
	c, _ := openTestCache(t)

	require.NoError(t, c.SaveConversations([]model.Conversation{{ID: "c1"}}))
	require.NoError(t, c.SaveMessages("c1", []model.Message{{ID: "m1"}}))
	require.NoError(t, c.SetActiveConversation("c1"))

	require.NoError(t, c.Clear())

	_, err := c.Conversations()
	assert.ErrorIs(t, err, ErrNotCached)
	_, err = c.ActiveConversation()
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestRemoveDeletesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "u1")
	require.NoError(t, err)
	require.NoError(t, c.SaveConversations([]model.Conversation{{ID: "c1"}}))
	c.Close()

	require.NoError(t, Remove(dir, "u1"))
	_, err = os.Stat(cachePath(dir, "u1"))
	assert.True(t, os.IsNotExist(err), "database file still present after Remove")

	// Removing an absent cache is not an error.
	assert.NoError(t, Remove(dir, "u1"))
}

func TestCachePathConfinesHostileUserIDs(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"../../etc/passwd", "..", `..\evil`, "a/b/c"} {
		path := cachePath(dir, id)
		assert.Equal(t, dir, filepath.Dir(path), "id %q escaped the data directory", id)
	}

	// A hostile ID still yields a working cache.
	c, err := Open(dir, "../escape")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SaveConversations([]model.Conversation{{ID: "c1"}}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestCachesAreIsolatedPerUser(t *testing.T) {
	dir := t.TempDir()

	c1, err := Open(dir, "u1")
	require.NoError(t, err)
	defer c1.Close()
	c2, err := Open(dir, "u2")
	require.NoError(t, err)
	defer c2.Close()

	require.NoError(t, c1.SaveConversations([]model.Conversation{{ID: "c1"}}))
	_, err = c2.Conversations()
	assert.ErrorIs(t, err, ErrNotCached)
}
