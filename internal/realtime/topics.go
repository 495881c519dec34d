// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import "strings"

// Broker topic layout.
const (
	// TopicPresenceWildcard receives every user's status changes.
	TopicPresenceWildcard = "presence/+/status"

	// TopicHeartbeat carries the periodic liveness publish.
	TopicHeartbeat = "presence/heartbeat"
)

// Category suffixes used for default handler routing.
const (
	SuffixMessages = "/messages"
	SuffixTyping   = "/typing"
	SuffixStatus   = "/status"
)

// MessagesTopic returns the message topic for a conversation.
func MessagesTopic(conversationID string) string {
	return "chat/" + conversationID + "/messages"
}

// TypingTopic returns the typing topic for a conversation.
func TypingTopic(conversationID string) string {
	return "chat/" + conversationID + "/typing"
}

// PresenceTopic returns the status topic for a user.
func PresenceTopic(userID string) string {
	return "presence/" + userID + "/status"
}

// MatchTopic reports whether a concrete topic matches a pattern. `+`
// matches exactly one segment; segment counts must be equal and every
// position must be equal or a wildcard.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pSegs := strings.Split(pattern, "/")
	tSegs := strings.Split(topic, "/")
	if len(pSegs) != len(tSegs) {
		return false
	}
	for i, p := range pSegs {
		if p != "+" && p != tSegs[i] {
			return false
		}
	}
	return true
}

// topicSuffix returns the category suffix of a topic, or "".
func topicSuffix(topic string) string {
	for _, s := range []string{SuffixMessages, SuffixTyping, SuffixStatus} {
		if strings.HasSuffix(topic, s) {
			return s
		}
	}
	return ""
}
