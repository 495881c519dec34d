// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/model"
)

// =============================================================================
// LOGIN
// =============================================================================

// LoginResult is the outcome of a successful credential exchange.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// oauthTokenResponse is the identity provider's token endpoint response.
type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login exchanges a username and password for a session token. The direct
// backend login endpoint is tried first; if it is unreachable or missing,
// the identity provider's resource-owner password grant is used and the
// profile is fetched separately.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, http.MethodPost, c.cfg.AuthURL+"/api/v1/auth/login",
		map[string]string{"username": username, "password": password}, &result, false)
	if err == nil {
		return &result, nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}

	logging.L().Warn("direct login failed, falling back to identity provider",
		zap.Error(err))
	return c.loginOAuth(ctx, username, password)
}

// loginOAuth performs the password-grant flow against the identity
// provider, then resolves the user profile by username.
func (c *Client) loginOAuth(ctx context.Context, username, password string) (*LoginResult, error) {
	endpoint := c.cfg.AuthURL + "/realms/" + c.cfg.Realm + "/protocol/openid-connect/token"
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {"relay-client"},
		"username":   {username},
		"password":   {password},
	}

	var tok oauthTokenResponse
	if err := c.doForm(ctx, endpoint, form, &tok); err != nil {
		return nil, err
	}

	// The profile lookup runs with the fresh token before the session
	// manager has stored it, so the header is set explicitly.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.AuthURL+"/api/v1/auth/users/username/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("User-Agent", "relay-tui/0.4.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, data)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &LoginResult{Token: tok.AccessToken, User: user}, nil
}

// =============================================================================
// USER MANAGEMENT
// =============================================================================

// Users returns every user in the organization. Admin only.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := c.do(ctx, http.MethodGet, c.cfg.AuthURL+"/api/v1/auth/users", nil, &users, true)
	return users, err
}

// SearchUsers finds users matching a query string.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	var users []model.User
	endpoint := c.cfg.AuthURL + "/api/v1/auth/users/search?q=" + url.QueryEscape(query)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &users, true)
	return users, err
}

// UserByUsername resolves a single user by username.
func (c *Client) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	endpoint := c.cfg.AuthURL + "/api/v1/auth/users/username/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies admin edits to a user record.
func (c *Client) UpdateUser(ctx context.Context, user model.User) (*model.User, error) {
	var updated model.User
	endpoint := c.cfg.AuthURL + "/api/v1/auth/users/" + url.PathEscape(user.ID)
	if err := c.do(ctx, http.MethodPut, endpoint, user, &updated, true); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteUser removes a user. Admin only.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	endpoint := c.cfg.AuthURL + "/api/v1/auth/users/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil, true)
}

// =============================================================================
// BROKER CREDENTIALS
// =============================================================================

// MQTTCredentials are the transport credentials the broker accepts,
// exchanged for the session token when the transport manager connects.
type MQTTCredentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	BrokerURL string `json:"broker_url,omitempty"`
}

// FetchMQTTCredentials exchanges the session for broker credentials.
func (c *Client) FetchMQTTCredentials(ctx context.Context) (*MQTTCredentials, error) {
	var creds MQTTCredentials
	err := c.do(ctx, http.MethodGet, c.cfg.AuthURL+"/api/v1/auth/mqtt-credentials", nil, &creds, true)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}
