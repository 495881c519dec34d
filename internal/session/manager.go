// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/logging"
	"github.com/morganforge/relay-tui/internal/model"
)

// Errors returned by the session manager.
var (
	// ErrNoSession indicates no persisted session exists to restore.
	ErrNoSession = errors.New("no saved session")

	// ErrSessionExpired indicates the persisted token has expired.
	ErrSessionExpired = errors.New("session expired")
)

// =============================================================================
// CREDENTIALS
// =============================================================================

// Credentials is the persisted session state.
type Credentials struct {
	Token     string     `json:"token"`
	User      model.User `json:"user"`
	ExpiresAt time.Time  `json:"expires_at,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
}

// Expired reports whether the token's lifetime has passed. Tokens without
// an expiry claim never expire locally; the backend's 401 is authoritative.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager tracks the authenticated user for the lifetime of a login.
type Manager struct {
	mu sync.RWMutex

	dataDir string
	client  *api.Client
	creds   *Credentials

	// onLogout runs after credentials are cleared, with the ID of the
	// user who was signed in. Main uses it to wipe that user's local
	// cache and stop the TUI on a forced logout.
	onLogout func(userID string, forced bool)
}

// NewManager creates a session manager persisting under dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir}
}

// AttachClient wires the backend client in after construction; the client
// needs the manager as its credential source, so the two are built in two
// steps.
func (m *Manager) AttachClient(client *api.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
	client.SetUnauthorizedHandler(func() { m.ForceLogout("session rejected by backend") })
}

// SetLogoutCallback installs the function called after any logout.
func (m *Manager) SetLogoutCallback(fn func(userID string, forced bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = fn
}

// =============================================================================
// LOGIN / RESTORE / LOGOUT
// =============================================================================

// Login exchanges credentials for a session and persists it.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return errors.New("session manager has no backend client attached")
	}

	result, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	creds := &Credentials{
		Token:    result.Token,
		User:     result.User,
		IssuedAt: time.Now(),
	}
	applyTokenClaims(creds)

	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()

	if err := m.saveCredentials(creds); err != nil {
		// A session that only lives until exit is still a session.
		logging.L().Warn("failed to persist session", zap.Error(err))
	}

	logging.L().Info("session started",
		zap.String("user_id", creds.User.ID),
		zap.String("org_id", creds.User.OrgID))
	return nil
}

// Restore loads the persisted session from disk, if one exists and has
// not expired.
func (m *Manager) Restore() error {
	creds, err := m.loadCredentials()
	if err != nil {
		return err
	}
	if creds.Expired(time.Now()) {
		m.clearCredentialFile()
		return ErrSessionExpired
	}

	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()

	logging.L().Info("session restored", zap.String("user_id", creds.User.ID))
	return nil
}

// Logout ends the session: credentials are dropped, the persisted file
// is removed, and the logout callback runs.
func (m *Manager) Logout() {
	m.logout(false)
}

// ForceLogout ends the session in response to a 401 from any backend.
func (m *Manager) ForceLogout(reason string) {
	logging.L().Warn("forced logout", zap.String("reason", reason))
	m.logout(true)
}

func (m *Manager) logout(forced bool) {
	m.mu.Lock()
	var userID string
	if m.creds != nil {
		userID = m.creds.User.ID
	}
	m.creds = nil
	onLogout := m.onLogout
	m.mu.Unlock()

	if userID == "" {
		return
	}

	m.clearCredentialFile()
	if onLogout != nil {
		onLogout(userID, forced)
	}
	logging.L().Info("session ended", zap.String("user_id", userID))
}

// =============================================================================
// CREDENTIAL SOURCE
// =============================================================================

// Token implements api.CredentialSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.Token
}

// UserID implements api.CredentialSource.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.User.ID
}

// OrgID implements api.CredentialSource.
func (m *Manager) OrgID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.User.OrgID
}

// =============================================================================
// SESSION STATE
// =============================================================================

// Active reports whether a user is logged in.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds != nil
}

// CurrentUser returns the authenticated user's profile.
func (m *Manager) CurrentUser() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return model.User{}, false
	}
	return m.creds.User, true
}

// UpdateProfile replaces the cached profile after an admin edit of the
// local user, keeping the persisted copy current.
func (m *Manager) UpdateProfile(user model.User) {
	m.mu.Lock()
	if m.creds == nil || m.creds.User.ID != user.ID {
		m.mu.Unlock()
		return
	}
	m.creds.User = user
	creds := *m.creds
	m.mu.Unlock()

	if err := m.saveCredentials(&creds); err != nil {
		logging.L().Warn("failed to persist profile update", zap.Error(err))
	}
}

// =============================================================================
// TOKEN CLAIMS
// =============================================================================

// applyTokenClaims fills in identity fields and expiry from the token's
// JWT claims when the token is a JWT. Verification belongs to the
// backends; the client only reads the claims it displays. Opaque tokens
// are left alone.
func applyTokenClaims(creds *Credentials) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(creds.Token, claims); err != nil {
		return
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		creds.ExpiresAt = exp.Time
	}
	if creds.User.ID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			creds.User.ID = sub
		}
	}
	if creds.User.OrgID == "" {
		if org, ok := claims["org_id"].(string); ok {
			creds.User.OrgID = org
		}
	}
}

// String describes the session for the status bar.
func (m *Manager) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return "logged out"
	}
	return fmt.Sprintf("%s@%s", m.creds.User.Username, m.creds.User.OrgID)
}
