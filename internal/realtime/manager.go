// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/logging"
)

// Defaults for the broker connection.
const (
	// DefaultHeartbeatInterval is how often liveness is published to the
	// presence service, independent of explicit status changes.
	DefaultHeartbeatInterval = 30 * time.Second

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned by Publish while the broker connection is
// down. There is no local queueing; the caller owns retry policy.
var ErrNotConnected = errors.New("realtime transport not connected")

// Handler receives the payload of an inbound broker message.
type Handler func(topic string, payload []byte)

// CredentialFetcher exchanges the session for broker credentials. The
// api.Client implements this.
type CredentialFetcher interface {
	FetchMQTTCredentials(ctx context.Context) (*api.MQTTCredentials, error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns one authenticated broker connection per session.
type Manager struct {
	mu sync.Mutex

	brokerURL string
	userID    string
	fetcher   CredentialFetcher

	// newClient builds the underlying transport; tests replace it.
	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client
	connected bool

	// Handler registry. Exact topics first, then wildcard patterns in
	// registration order, then category defaults by suffix.
	exact    map[string]Handler
	patterns []patternHandler
	defaults map[string]Handler

	// pending are subscribe intents registered before connectivity.
	pending []pendingSub

	heartbeatInterval time.Duration
	heartbeatStop     chan struct{}

	onConnect    func()
	onDisconnect func(err error)
}

type patternHandler struct {
	pattern string
	handler Handler
}

type pendingSub struct {
	topic   string
	handler Handler
}

// NewManager creates a transport manager for a session. brokerURL may be
// empty, in which case the URL returned with the broker credentials is
// used.
func NewManager(brokerURL, userID string, fetcher CredentialFetcher) *Manager {
	return &Manager{
		brokerURL:         brokerURL,
		userID:            userID,
		fetcher:           fetcher,
		newClient:         mqtt.NewClient,
		exact:             make(map[string]Handler),
		defaults:          make(map[string]Handler),
		heartbeatInterval: DefaultHeartbeatInterval,
	}
}

// SetConnectCallback installs the function run after every successful
// connect, including reconnects. Callers restore their subscriptions
// here.
func (m *Manager) SetConnectCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = fn
}

// SetDisconnectCallback installs the function run when the connection
// drops.
func (m *Manager) SetDisconnectCallback(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// =============================================================================
// CONNECTION LIFECYCLE
// =============================================================================

// Connect establishes the broker connection. Idempotent: a second call on
// a live connection is a no-op. On success the manager auto-subscribes to
// the current user's own presence topic. Connection errors propagate; the
// caller retries or falls back to polling.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	fetcher := m.fetcher
	m.mu.Unlock()

	creds, err := fetcher.FetchMQTTCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch broker credentials: %w", err)
	}

	brokerURL := m.brokerURL
	if creds.BrokerURL != "" {
		brokerURL = creds.BrokerURL
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("relay-" + m.userID + "-" + uuid.NewString()[:8]).
		SetUsername(creds.Username).
		SetPassword(creds.Password).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetCleanSession(true)

	opts.SetOnConnectHandler(func(mqtt.Client) { m.handleConnected() })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { m.handleDisconnected(err) })
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		m.route(msg.Topic(), msg.Payload())
	})

	m.mu.Lock()
	client := m.newClient(opts)
	m.client = client
	m.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: connect timed out", ErrNotConnected)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker connect failed: %w", err)
	}
	return nil
}

// handleConnected runs on every successful connect, including automatic
// reconnects.
func (m *Manager) handleConnected() {
	m.mu.Lock()
	m.connected = true
	client := m.client
	pending := m.pending
	m.pending = nil
	onConnect := m.onConnect
	m.mu.Unlock()

	logging.L().Info("realtime transport connected")

	// Own presence topic is the one subscription the manager guarantees.
	own := PresenceTopic(m.userID)
	m.registerHandler(own, nil)
	m.brokerSubscribe(client, own)

	// Flush subscribe intents deferred while disconnected.
	for _, p := range pending {
		m.registerHandler(p.topic, p.handler)
		m.brokerSubscribe(client, p.topic)
	}

	m.startHeartbeat()

	if onConnect != nil {
		onConnect()
	}
}

// handleDisconnected runs when the transport loses the broker. Paho's
// backoff drives the reconnect; the manager only reports and stops the
// heartbeat.
func (m *Manager) handleDisconnected(err error) {
	m.mu.Lock()
	m.connected = false
	onDisconnect := m.onDisconnect
	m.mu.Unlock()

	m.stopHeartbeat()
	logging.L().Warn("realtime transport disconnected", zap.Error(err))

	if onDisconnect != nil {
		onDisconnect(err)
	}
}

// Close tears the connection down at logout.
func (m *Manager) Close() {
	m.stopHeartbeat()

	m.mu.Lock()
	client := m.client
	m.client = nil
	m.connected = false
	m.pending = nil
	m.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
}

// Connected reports whether the broker connection is live.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// =============================================================================
// SUBSCRIBE / PUBLISH
// =============================================================================

// Subscribe registers a handler for a topic, which may contain
// single-segment `+` wildcards. If the transport is not yet connected the
// intent is deferred and flushed on the next connect instead of dropped.
func (m *Manager) Subscribe(topic string, handler Handler) {
	m.mu.Lock()
	if !m.connected {
		m.pending = append(m.pending, pendingSub{topic: topic, handler: handler})
		m.mu.Unlock()
		logging.L().Debug("subscribe deferred until connect", zap.String("topic", topic))
		return
	}
	client := m.client
	m.mu.Unlock()

	m.registerHandler(topic, handler)
	m.brokerSubscribe(client, topic)
}

// Unsubscribe removes a topic's broker subscription and handler.
func (m *Manager) Unsubscribe(topic string) {
	m.mu.Lock()
	delete(m.exact, topic)
	for i, p := range m.patterns {
		if p.pattern == topic {
			m.patterns = append(m.patterns[:i], m.patterns[i+1:]...)
			break
		}
	}
	client := m.client
	connected := m.connected
	m.mu.Unlock()

	if connected && client != nil {
		client.Unsubscribe(topic)
	}
}

// SetCategoryHandler installs the default handler for a topic suffix
// (SuffixMessages, SuffixTyping, SuffixStatus), used when no exact or
// wildcard registration matches.
func (m *Manager) SetCategoryHandler(suffix string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults[suffix] = handler
}

// Publish sends a payload to a topic. It fails immediately while
// disconnected: the transport keeps no local queue.
func (m *Manager) Publish(topic string, payload interface{}, qos byte, retain bool) error {
	m.mu.Lock()
	client := m.client
	connected := m.connected
	m.mu.Unlock()

	if !connected || client == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	token := client.Publish(topic, qos, retain, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}
	return nil
}

// =============================================================================
// ROUTING
// =============================================================================

// registerHandler records a handler in the exact or pattern registry. A
// nil handler records nothing: payloads on the topic (own presence)
// route through the category defaults instead.
func (m *Manager) registerHandler(topic string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if containsWildcard(topic) {
		for i, p := range m.patterns {
			if p.pattern == topic {
				m.patterns[i].handler = handler
				return
			}
		}
		m.patterns = append(m.patterns, patternHandler{pattern: topic, handler: handler})
		return
	}
	m.exact[topic] = handler
}

// route dispatches one inbound message: exact match, then wildcard
// patterns, then the category default for the topic's suffix. Handler
// panics on one payload must not break the subscription, so routing
// recovers and logs.
func (m *Manager) route(topic string, payload []byte) {
	m.mu.Lock()
	handler := m.exact[topic]
	if handler == nil {
		for _, p := range m.patterns {
			if MatchTopic(p.pattern, topic) {
				handler = p.handler
				break
			}
		}
	}
	if handler == nil {
		handler = m.defaults[topicSuffix(topic)]
	}
	m.mu.Unlock()

	if handler == nil {
		logging.L().Debug("unrouted broker message", zap.String("topic", topic))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("realtime handler panicked",
				zap.String("topic", topic), zap.Any("panic", r))
		}
	}()
	handler(topic, payload)
}

// brokerSubscribe issues the broker-side subscription, routing through
// the shared dispatcher.
func (m *Manager) brokerSubscribe(client mqtt.Client, topic string) {
	if client == nil {
		return
	}
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		m.route(msg.Topic(), msg.Payload())
	})
	go func() {
		if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
			logging.L().Warn("broker subscribe failed",
				zap.String("topic", topic), zap.Error(token.Error()))
		}
	}()
}

func containsWildcard(topic string) bool {
	for i := 0; i < len(topic); i++ {
		if topic[i] == '+' {
			return true
		}
	}
	return false
}

// =============================================================================
// HEARTBEAT
// =============================================================================

// heartbeatPayload is the liveness signal consumed by the presence
// service.
type heartbeatPayload struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// startHeartbeat begins the periodic liveness publish.
func (m *Manager) startHeartbeat() {
	m.mu.Lock()
	if m.heartbeatStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.heartbeatStop = stop
	interval := m.heartbeatInterval
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				err := m.Publish(TopicHeartbeat, heartbeatPayload{
					UserID:    m.userID,
					Timestamp: time.Now(),
				}, 0, false)
				if err != nil {
					logging.L().Debug("heartbeat publish skipped", zap.Error(err))
				}
			}
		}
	}()
}

// stopHeartbeat stops the liveness publish.
func (m *Manager) stopHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}
