// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type stubDirectory struct {
	users     []model.User
	updateErr error
	deleteErr error
	updated   []model.User
	deleted   []string
}

func (d *stubDirectory) Users(context.Context) ([]model.User, error) {
	return d.users, nil
}

func (d *stubDirectory) UpdateUser(_ context.Context, user model.User) (*model.User, error) {
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	d.updated = append(d.updated, user)
	return &user, nil
}

func (d *stubDirectory) DeleteUser(_ context.Context, userID string) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	d.deleted = append(d.deleted, userID)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

var rosterUsers = []model.User{
	{ID: "u-admin", Username: "boss", DisplayName: "The Boss", Role: model.RoleAdmin},
	{ID: "u-jose", Username: "jose", DisplayName: "José García", Role: model.RoleMember},
	{ID: "u-zoe", Username: "zoe", DisplayName: "Zoë", Role: model.RoleMember},
}

func newTestRoster(t *testing.T) (Model, *stubDirectory) {
	t.Helper()
	dir := &stubDirectory{users: rosterUsers}
	m := New(dir, styles.NewTheme("dark"), rosterUsers[0])
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = m.Update(RosterLoadedMsg{Users: dir.users})
	return m, dir
}

func press(m Model, k tea.KeyMsg) (Model, tea.Cmd) { return m.Update(k) }

func keyRune(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

// =============================================================================
// SEARCH
// =============================================================================

func TestNormalizeQueryFoldsCaseAndAccents(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JOSÉ", "jose"},
		{"  Zoë ", "zoe"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := normalizeQuery(tt.in); got != tt.want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilterUsersMatchesAcrossAccents(t *testing.T) {
	got := filterUsers(rosterUsers, "garcia")
	if len(got) != 1 || got[0].ID != "u-jose" {
		t.Fatalf("filterUsers(garcia) = %v", got)
	}
	if got := filterUsers(rosterUsers, ""); len(got) != len(rosterUsers) {
		t.Fatalf("empty query filtered users: %v", got)
	}
	if got := filterUsers(rosterUsers, "nobody"); len(got) != 0 {
		t.Fatalf("bogus query matched: %v", got)
	}
}

func TestSearchNarrowsRoster(t *testing.T) {
	m, _ := newTestRoster(t)

	m, _ = press(m, keyRune("/"))
	if !m.searching {
		t.Fatal("slash did not enter search mode")
	}
	m, _ = press(m, keyRune("zo"))
	if len(m.filtered) != 1 || m.filtered[0].ID != "u-zoe" {
		t.Fatalf("filtered = %v", m.filtered)
	}

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.searching || len(m.filtered) != len(rosterUsers) {
		t.Fatal("esc did not clear the search")
	}
}

// =============================================================================
// ROLE CHANGES
// =============================================================================

func TestToggleRolePromotesMember(t *testing.T) {
	m, dir := newTestRoster(t)
	m.selected = 1 // jose, member

	_, cmd := press(m, keyRune("r"))
	if cmd == nil {
		t.Fatal("role toggle produced no command")
	}
	msg, ok := cmd().(UserUpdatedMsg)
	if !ok || msg.Err != nil {
		t.Fatalf("toggle result = %#v", msg)
	}
	if msg.User.Role != model.RoleAdmin {
		t.Fatalf("role = %q, want admin", msg.User.Role)
	}
	if len(dir.updated) != 1 || dir.updated[0].ID != "u-jose" {
		t.Fatalf("directory saw %v", dir.updated)
	}
}

func TestToggleOwnRoleRefused(t *testing.T) {
	m, dir := newTestRoster(t)
	m.selected = 0 // the signed-in admin

	m, cmd := press(m, keyRune("r"))
	if cmd == nil {
		t.Fatal("expected a banner command")
	}
	if !m.banner.Visible() {
		t.Fatal("no warning banner")
	}
	if len(dir.updated) != 0 {
		t.Fatalf("own-role change reached the service: %v", dir.updated)
	}
}

func TestRoleChangeErrorSurfacesBanner(t *testing.T) {
	m, _ := newTestRoster(t)

	m, cmd := m.Update(UserUpdatedMsg{Err: errors.New("forbidden")})
	if cmd == nil || !m.banner.Visible() {
		t.Fatal("update error produced no banner")
	}
	if m.users[1].Role != model.RoleMember {
		t.Fatal("failed update mutated the roster")
	}
}

// =============================================================================
// DELETION
// =============================================================================

func TestDeleteRequiresConfirmation(t *testing.T) {
	m, dir := newTestRoster(t)
	m.selected = 1

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if len(dir.deleted) != 0 {
		t.Fatal("first keypress deleted immediately")
	}
	if m.pendingDelete != "u-jose" {
		t.Fatalf("pendingDelete = %q", m.pendingDelete)
	}

	_, cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if cmd == nil {
		t.Fatal("confirming keypress produced no command")
	}
	msg, ok := cmd().(UserDeletedMsg)
	if !ok || msg.Err != nil || msg.UserID != "u-jose" {
		t.Fatalf("delete result = %#v", msg)
	}
	if len(dir.deleted) != 1 || dir.deleted[0] != "u-jose" {
		t.Fatalf("directory saw %v", dir.deleted)
	}
}

func TestMovingSelectionCancelsPendingDelete(t *testing.T) {
	m, dir := newTestRoster(t)
	m.selected = 1

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if len(dir.deleted) != 0 {
		t.Fatalf("delete fired across rows: %v", dir.deleted)
	}
	if m.pendingDelete != "u-zoe" {
		t.Fatalf("pendingDelete = %q, want the new row", m.pendingDelete)
	}
}

func TestDeleteSelfRefused(t *testing.T) {
	m, dir := newTestRoster(t)
	m.selected = 0

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if len(dir.deleted) != 0 {
		t.Fatal("admin deleted their own account")
	}
	if m.pendingDelete != "" {
		t.Fatal("self-delete armed the confirmation")
	}
}

func TestDeletedUserLeavesRoster(t *testing.T) {
	m, _ := newTestRoster(t)

	m, _ = m.Update(UserDeletedMsg{UserID: "u-zoe"})
	for _, u := range m.users {
		if u.ID == "u-zoe" {
			t.Fatal("deleted user still in roster")
		}
	}
	if len(m.filtered) != 2 {
		t.Fatalf("filtered length = %d, want 2", len(m.filtered))
	}
}

// =============================================================================
// RENDERING
// =============================================================================

func TestViewMarksRolesAndSelf(t *testing.T) {
	m, _ := newTestRoster(t)
	out := m.View()

	if !strings.Contains(out, "boss") || !strings.Contains(out, "jose") {
		t.Fatal("usernames missing from view")
	}
	if !strings.Contains(out, "admin") {
		t.Fatal("admin role marker missing")
	}
	if !strings.Contains(out, "(you)") {
		t.Fatal("self marker missing")
	}
	if !strings.Contains(out, "3 of 3 users") {
		t.Fatal("roster count missing")
	}
}
