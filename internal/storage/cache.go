// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/morganforge/relay-tui/internal/model"
)

// ErrNotCached is returned when the requested snapshot has never been
// written. Use errors.Is to check for it.
var ErrNotCached = errors.New("no cached snapshot")

const activeConversationKey = "active_conversation"

// =============================================================================
// CACHE
// =============================================================================

// Cache is the per-user local snapshot database.
type Cache struct {
	db     *sql.DB
	userID string
}

// Open opens (creating if needed) the cache database for a user under
// dataDir.
func Open(dataDir, userID string) (*Cache, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", cachePath(dataDir, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Single writer; the event loop owns all mutation.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure cache database: %w", err)
		}
	}

	c := &Cache{db: db, userID: userID}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// migrate creates the schema. Snapshots are stored as JSON blobs keyed
// by ID; the schema only carries the columns used for lookup and
// ordering.
func (c *Cache) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	updated_at  TIMESTAMP NOT NULL,
	data        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	conversation_id  TEXT NOT NULL,
	id               TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	data             TEXT NOT NULL,
	PRIMARY KEY (conversation_id, id)
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, created_at);
CREATE TABLE IF NOT EXISTS meta (
	key    TEXT PRIMARY KEY,
	value  TEXT NOT NULL
);`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate cache database: %w", err)
	}
	return nil
}

// =============================================================================
// CONVERSATION SNAPSHOTS
// =============================================================================

// SaveConversations replaces the cached conversation list with the
// given snapshot.
func (c *Cache) SaveConversations(convs []model.Conversation) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO conversations (id, updated_at, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range convs {
		data, err := json.Marshal(&convs[i])
		if err != nil {
			return fmt.Errorf("failed to encode conversation %s: %w", convs[i].ID, err)
		}
		if _, err := stmt.Exec(convs[i].ID, convs[i].UpdatedAt, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Conversations returns the cached conversation list, most recently
// updated first. ErrNotCached when no snapshot has been written.
func (c *Cache) Conversations() ([]model.Conversation, error) {
	rows, err := c.db.Query(`SELECT data FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var conv model.Conversation
		if err := json.Unmarshal([]byte(data), &conv); err != nil {
			// Skip rows written by an incompatible version.
			continue
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if convs == nil {
		return nil, ErrNotCached
	}
	return convs, nil
}

// =============================================================================
// MESSAGE SNAPSHOTS
// =============================================================================

// SaveMessages replaces the cached message history for one
// conversation.
func (c *Cache) SaveMessages(conversationID string, msgs []model.Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO messages (conversation_id, id, created_at, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range msgs {
		data, err := json.Marshal(&msgs[i])
		if err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msgs[i].ID, err)
		}
		if _, err := stmt.Exec(conversationID, msgs[i].ID, msgs[i].SentAt, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Messages returns the cached history for a conversation in
// chronological order. ErrNotCached when the conversation has no
// snapshot.
func (c *Cache) Messages(conversationID string) ([]model.Message, error) {
	rows, err := c.db.Query(
		`SELECT data FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if msgs == nil {
		return nil, ErrNotCached
	}
	return msgs, nil
}

// =============================================================================
// ACTIVE CONVERSATION
// =============================================================================

// SetActiveConversation records which conversation was open, so the
// next launch restores it.
func (c *Cache) SetActiveConversation(conversationID string) error {
	_, err := c.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		activeConversationKey, conversationID)
	return err
}

// ActiveConversation returns the last open conversation ID, or
// ErrNotCached.
func (c *Cache) ActiveConversation() (string, error) {
	var id string
	err := c.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, activeConversationKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotCached
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// =============================================================================
// REMOVAL
// =============================================================================

// Clear empties every table but keeps the database file.
func (c *Cache) Clear() error {
	for _, table := range []string{"messages", "conversations", "meta"} {
		if _, err := c.db.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a user's cache database from disk. Called at logout;
// the cache must be closed first.
func Remove(dataDir, userID string) error {
	base := cachePath(dataDir, userID)
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// cachePath returns the database file path for a user. The ID comes
// from the backend, so anything a filename cannot carry is mapped away
// to keep the file inside the data directory.
func cachePath(dataDir, userID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, userID)
	return filepath.Join(dataDir, "cache-"+safe+".db")
}
