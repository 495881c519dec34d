// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the REST clients for the four relay backend
// services: auth, chat, presence, and media.
//
// All requests except the identity-provider token endpoint carry the
// session token as a bearer credential plus denormalized user and
// organization identifiers as headers. Any 401 from any backend triggers
// the session manager's forced-logout callback.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/logging"
)

// Configuration constants for backend requests.
const (
	// DefaultTimeout bounds every backend call. There is no cancellation
	// of in-flight requests on navigation; stale responses are superseded
	// by identifier checks at ingestion.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize caps response bodies to keep a misbehaving backend
	// from exhausting memory.
	MaxResponseSize = 10 * 1024 * 1024
)

// sharedHTTPClient pools connections across all four services.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// CONFIG AND CREDENTIALS
// =============================================================================

// Config holds the base URLs of the backend services.
type Config struct {
	AuthURL     string
	ChatURL     string
	PresenceURL string
	MediaURL    string

	// Realm is the identity-provider realm for the OAuth fallback flow.
	Realm string
}

// CredentialSource supplies the session credentials attached to every
// authenticated request. The session manager implements this.
type CredentialSource interface {
	// Token returns the current session token, empty when logged out.
	Token() string
	// UserID returns the authenticated user's identifier.
	UserID() string
	// OrgID returns the authenticated user's organization identifier.
	OrgID() string
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the shared base for the per-service clients.
type Client struct {
	cfg   Config
	http  *http.Client
	creds CredentialSource

	// onUnauthorized runs once per 401 response. The session manager uses
	// it to force a logout.
	onUnauthorized func()
}

// New creates a backend client with the given service configuration and
// credential source.
func New(cfg Config, creds CredentialSource) *Client {
	return &Client{
		cfg:   cfg,
		http:  sharedHTTPClient,
		creds: creds,
	}
}

// WithHTTPClient overrides the HTTP client. Tests use this together with
// httptest servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// SetUnauthorizedHandler installs the forced-logout callback.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// Config returns the service configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// =============================================================================
// REQUEST EXECUTION
// =============================================================================

// do executes a JSON request against a backend service. When authed is
// true the session token and identity headers are attached. A non-nil out
// receives the decoded response body.
func (c *Client) do(ctx context.Context, method, url string, body, out interface{}, authed bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "relay-tui/0.4.0")
	if authed {
		c.setAuthHeaders(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	logging.L().Debug("backend request",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	data, err := readLimited(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Only an authenticated request implies an expired session; a
		// rejected login attempt must not force a logout loop.
		if authed && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(data))
	}
	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// doForm posts a form-encoded body. Used only by the identity-provider
// token endpoint, which does not take the bearer headers.
func (c *Client) doForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "relay-tui/0.4.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(data))
	}
	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// setAuthHeaders attaches the bearer token and denormalized identifiers.
func (c *Client) setAuthHeaders(req *http.Request) {
	if c.creds == nil {
		return
	}
	if tok := c.creds.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if uid := c.creds.UserID(); uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	if oid := c.creds.OrgID(); oid != "" {
		req.Header.Set("X-Org-ID", oid)
	}
}

// readLimited reads a response body with the size cap applied. One
// extra byte distinguishes a body of exactly the cap from an oversized
// one.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}
