// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package realtime owns the single publish/subscribe connection to the
// relay broker (MQTT over WebSocket).
//
// The manager exchanges the session for broker credentials, connects
// once per session, and fans inbound messages out to registered handlers:
// exact topic match first, then single-segment `+` wildcard patterns,
// then a default category handler keyed by topic suffix. Subscriptions
// requested before connectivity are deferred and flushed on connect
// rather than dropped.
//
// Reconnects use the transport's built-in backoff. Restoring
// subscriptions after a reconnect is the caller's job, done in the
// connect callback; the manager only re-establishes the user's own
// presence topic.
package realtime
