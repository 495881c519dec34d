// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme("dark")
}

func TestStatusBarShowsIdentityAndConnection(t *testing.T) {
	bar := StatusBar{Username: "alice", Connected: true, Width: 120}
	out := bar.Render(testTheme())

	if !strings.Contains(out, "alice") {
		t.Error("username missing from status bar")
	}
	if !strings.Contains(out, "live") {
		t.Error("connected state missing from status bar")
	}
}

func TestStatusBarAdminHint(t *testing.T) {
	theme := testTheme()

	member := StatusBar{Username: "bob", Role: model.RoleMember, Width: 120}
	if strings.Contains(member.Render(theme), "roster") {
		t.Error("member sees the roster shortcut")
	}

	admin := StatusBar{Username: "root", Role: model.RoleAdmin, Width: 120}
	out := admin.Render(theme)
	if !strings.Contains(out, "roster") {
		t.Error("admin missing the roster shortcut")
	}
	if !strings.Contains(out, "[admin]") {
		t.Error("admin badge missing")
	}
}

func TestStatusBarNarrowTerminalDropsHints(t *testing.T) {
	bar := StatusBar{Username: "alice", Connected: false, Width: 24}
	out := bar.Render(testTheme())
	if strings.Contains(out, "quit") {
		t.Error("shortcuts shown on a terminal too narrow for them")
	}
}

func TestBannerLifecycle(t *testing.T) {
	theme := testTheme()
	var b Banner

	if b.Visible() {
		t.Fatal("zero banner visible")
	}

	cmd := b.Show(BannerError, "chat service unavailable")
	if cmd == nil {
		t.Fatal("Show returned no expiry command")
	}
	if !b.Visible() {
		t.Fatal("banner hidden after Show")
	}
	if !strings.Contains(b.View(theme, 80), "chat service unavailable") {
		t.Error("banner text missing from view")
	}

	// A stale expiry must not clear a newer banner.
	first := BannerExpiredMsg{ID: 1}
	b.Show(BannerWarn, "replacement")
	b.Expire(first)
	if !b.Visible() {
		t.Error("stale expiry cleared the newer banner")
	}

	b.Expire(BannerExpiredMsg{ID: 2})
	if b.Visible() {
		t.Error("matching expiry did not clear the banner")
	}
}

func TestSpinnerLifecycle(t *testing.T) {
	theme := testTheme()
	s := NewSpinner("Loading conversation")

	if s.View(theme) != "" {
		t.Error("inactive spinner rendered output")
	}
	if cmd := s.Start(); cmd == nil {
		t.Error("Start returned no tick command")
	}
	if !strings.Contains(s.View(theme), "Loading conversation") {
		t.Error("spinner message missing")
	}
	s.Stop()
	if s.View(theme) != "" {
		t.Error("stopped spinner still renders")
	}
}
