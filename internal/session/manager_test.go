// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/morganforge/relay-tui/internal/api"
	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/storage"
)

func newLoginServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(api.LoginResult{
			Token: "opaque-token",
			User:  model.User{ID: "u1", Username: "ada", OrgID: "org1", Role: model.RoleAdmin},
		})
	}))
}

func newManagerWithClient(t *testing.T, serverURL string) *Manager {
	t.Helper()
	m := NewManager(t.TempDir())
	client := api.New(api.Config{AuthURL: serverURL, Realm: "relay"}, m)
	m.AttachClient(client)
	return m
}

func TestLoginPopulatesCredentials(t *testing.T) {
	server := newLoginServer(t)
	defer server.Close()

	m := newManagerWithClient(t, server.URL)
	if err := m.Login(context.Background(), "ada", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if m.Token() != "opaque-token" {
		t.Errorf("Token = %q", m.Token())
	}
	if m.UserID() != "u1" || m.OrgID() != "org1" {
		t.Errorf("identity = %q/%q, want u1/org1", m.UserID(), m.OrgID())
	}
	user, ok := m.CurrentUser()
	if !ok || !user.IsAdmin() {
		t.Errorf("CurrentUser = %+v, %v", user, ok)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	server := newLoginServer(t)
	defer server.Close()

	dir := t.TempDir()
	m := NewManager(dir)
	client := api.New(api.Config{AuthURL: server.URL, Realm: "relay"}, m)
	m.AttachClient(client)
	if err := m.Login(context.Background(), "ada", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A fresh manager over the same data directory restores the session.
	restored := NewManager(dir)
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Token() != "opaque-token" || restored.UserID() != "u1" {
		t.Errorf("restored %q/%q", restored.Token(), restored.UserID())
	}
}

func TestRestoreWithoutSession(t *testing.T) {
	m := NewManager(t.TempDir())
	if err := m.Restore(); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	server := newLoginServer(t)
	defer server.Close()

	dir := t.TempDir()
	m := NewManager(dir)
	client := api.New(api.Config{AuthURL: server.URL, Realm: "relay"}, m)
	m.AttachClient(client)
	if err := m.Login(context.Background(), "ada", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	var clearedUser string
	var wasForced bool
	m.SetLogoutCallback(func(userID string, forced bool) {
		clearedUser = userID
		wasForced = forced
	})

	m.Logout()

	if m.Active() {
		t.Error("session still active after logout")
	}
	if clearedUser != "u1" || wasForced {
		t.Errorf("callback got %q forced=%v, want u1 forced=false", clearedUser, wasForced)
	}

	// Persisted session is gone.
	if err := NewManager(dir).Restore(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Restore after logout = %v, want ErrNoSession", err)
	}
}

func TestForcedLogoutOn401(t *testing.T) {
	var loggedIn bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			loggedIn = true
			json.NewEncoder(w).Encode(api.LoginResult{
				Token: "t", User: model.User{ID: "u1", OrgID: "org1"},
			})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	m := newManagerWithClient(t, server.URL)
	client := api.New(api.Config{AuthURL: server.URL, ChatURL: server.URL, Realm: "relay"}, m)
	m.AttachClient(client)

	if err := m.Login(context.Background(), "ada", "pw"); err != nil || !loggedIn {
		t.Fatalf("Login: %v", err)
	}

	var forced bool
	m.SetLogoutCallback(func(_ string, f bool) { forced = f })

	// Any authenticated call answered with 401 ends the session.
	_, err := client.Conversations(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if m.Active() {
		t.Error("session survived a 401")
	}
	if !forced {
		t.Error("logout was not marked forced")
	}
}

func TestForcedLogoutWipesLocalCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			json.NewEncoder(w).Encode(api.LoginResult{
				Token: "t", User: model.User{ID: "u1", OrgID: "org1"},
			})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	dataDir := t.TempDir()
	m := NewManager(dataDir)
	client := api.New(api.Config{AuthURL: server.URL, ChatURL: server.URL, Realm: "relay"}, m)
	m.AttachClient(client)

	if err := m.Login(context.Background(), "ada", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	cache, err := storage.Open(dataDir, "u1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cache.SaveConversations([]model.Conversation{{ID: "c1"}}); err != nil {
		t.Fatalf("SaveConversations: %v", err)
	}

	var gotUser string
	m.SetLogoutCallback(func(userID string, forced bool) {
		if !forced {
			return
		}
		gotUser = userID
		cache.Close()
		if err := storage.Remove(dataDir, userID); err != nil {
			t.Errorf("Remove: %v", err)
		}
	})

	// The 401 forces the logout, which must take the snapshot with it.
	if _, err := client.Conversations(context.Background()); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	if gotUser != "u1" {
		t.Errorf("callback userID = %q, want the signed-in user", gotUser)
	}
	matches, err := filepath.Glob(filepath.Join(dataDir, "cache-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("cache files survived forced logout: %v", matches)
	}
}

func TestCredentialsExpired(t *testing.T) {
	now := time.Now()
	creds := &Credentials{Token: "t", ExpiresAt: now.Add(-time.Minute)}
	if !creds.Expired(now) {
		t.Error("expired token reported live")
	}
	opaque := &Credentials{Token: "t"}
	if opaque.Expired(now) {
		t.Error("token without expiry claim reported expired")
	}
}
