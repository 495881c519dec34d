// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// PRESENCE
// =============================================================================

// PresenceStatus is a user's current availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceDND     PresenceStatus = "dnd"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceRecord is a user's availability plus optional custom text.
// Records are keyed uniquely by UserID: per user, the record that arrived
// last wins, whether it came from a REST poll or the broker.
type PresenceRecord struct {
	UserID     string         `json:"user_id"`
	Status     PresenceStatus `json:"status"`
	StatusText string         `json:"status_text,omitempty"`
	LastSeen   time.Time      `json:"last_seen,omitempty"`
}

// OfflinePresence synthesizes the default record used when the presence
// service is unreachable.
func OfflinePresence(userID string) PresenceRecord {
	return PresenceRecord{UserID: userID, Status: PresenceOffline}
}

// Glyph returns the status indicator character for the sidebar.
func (p PresenceRecord) Glyph() string {
	switch p.Status {
	case PresenceOnline:
		return "●"
	case PresenceAway:
		return "◐"
	case PresenceDND:
		return "⊘"
	default:
		return "○"
	}
}

// =============================================================================
// TYPING INDICATORS
// =============================================================================

// TypingTTL is how long a typing indicator stays visible without a
// refreshing event. Expiry is purely time-based so a lost stop signal
// cannot leave a stale indicator on screen.
const TypingTTL = 5 * time.Second

// TypingIndicator is the ephemeral (user, conversation) signal that a user
// is composing. The local user never appears in these.
type TypingIndicator struct {
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	ConversationID string    `json:"conversation_id"`
	StartedAt      time.Time `json:"started_at"`
}

// Expired reports whether the indicator has outlived TypingTTL at the
// given instant.
func (t TypingIndicator) Expired(now time.Time) bool {
	return now.Sub(t.StartedAt) >= TypingTTL
}
