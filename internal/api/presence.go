// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/model"
)

// =============================================================================
// PRESENCE READS
// =============================================================================

// Presence fetches one user's presence record. When the presence service
// is unreachable it returns a synthesized offline record instead of an
// error; an empty sidebar beats a broken screen.
func (c *Client) Presence(ctx context.Context, userID string) model.PresenceRecord {
	var rec model.PresenceRecord
	endpoint := c.cfg.PresenceURL + "/api/v1/presence/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &rec, true); err != nil {
		logging.L().Warn("presence fetch degraded to offline",
			zap.String("user_id", userID), zap.Error(err))
		return model.OfflinePresence(userID)
	}
	if rec.UserID == "" {
		rec.UserID = userID
	}
	return rec
}

// BulkPresence fetches presence for many users at once. Unreachable or
// partial results degrade to offline records per user, never an error.
func (c *Client) BulkPresence(ctx context.Context, userIDs []string) []model.PresenceRecord {
	if len(userIDs) == 0 {
		return nil
	}

	var recs []model.PresenceRecord
	err := c.do(ctx, http.MethodPost, c.cfg.PresenceURL+"/api/v1/presence/bulk",
		map[string][]string{"user_ids": userIDs}, &recs, true)
	if err != nil {
		logging.L().Warn("bulk presence degraded to offline",
			zap.Int("users", len(userIDs)), zap.Error(err))
		recs = nil
	}

	// Fill in offline defaults for any user the service omitted.
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		seen[r.UserID] = true
	}
	for _, id := range userIDs {
		if !seen[id] {
			recs = append(recs, model.OfflinePresence(id))
		}
	}
	return recs
}

// PresenceSession is one active device session for a user.
type PresenceSession struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	StartedAt time.Time `json:"started_at"`
}

// PresenceSessions lists a user's active sessions.
func (c *Client) PresenceSessions(ctx context.Context, userID string) ([]PresenceSession, error) {
	var sessions []PresenceSession
	endpoint := c.cfg.PresenceURL + "/api/v1/presence/" + url.PathEscape(userID) + "/sessions"
	err := c.do(ctx, http.MethodGet, endpoint, nil, &sessions, true)
	return sessions, err
}

// =============================================================================
// PRESENCE WRITES
// =============================================================================

// SetPresence publishes the local user's full presence record.
func (c *Client) SetPresence(ctx context.Context, rec model.PresenceRecord) error {
	endpoint := c.cfg.PresenceURL + "/api/v1/presence/" + url.PathEscape(rec.UserID)
	return c.do(ctx, http.MethodPut, endpoint, rec, nil, true)
}

// SetStatus updates only the local user's status and custom text.
func (c *Client) SetStatus(ctx context.Context, userID string, status model.PresenceStatus, text string) error {
	endpoint := c.cfg.PresenceURL + "/api/v1/presence/" + url.PathEscape(userID) + "/status"
	body := map[string]string{"status": string(status), "status_text": text}
	return c.do(ctx, http.MethodPut, endpoint, body, nil, true)
}
