// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the relay TUI.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/ui/styles"
	"github.com/morganforge/relay-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom bar: identity, connection state and
// shortcuts.
type StatusBar struct {
	Username  string
	Role      model.Role
	Connected bool
	Degraded  bool
	Width     int
}

// Shortcut is one key hint shown on the right side of the bar.
type Shortcut struct {
	Key  string
	Desc string
}

// defaultShortcuts are always visible; the admin hint appears only for
// admins.
var defaultShortcuts = []Shortcut{
	{Key: "tab", Desc: "switch pane"},
	{Key: "C-a", Desc: "attach"},
	{Key: "C-q", Desc: "quit"},
}

// Render draws the status bar at the given width.
func (s StatusBar) Render(theme *styles.Theme) string {
	conn := theme.StatusOff.Render("offline")
	if s.Connected {
		conn = theme.StatusOnline.Render("live")
	}

	left := s.Username
	if s.Role == model.RoleAdmin {
		left += " [admin]"
	}
	left += "  " + conn
	if s.Degraded {
		left += "  " + theme.WarnBanner.Render("degraded")
	}

	shortcuts := defaultShortcuts
	if s.Role == model.RoleAdmin {
		shortcuts = append([]Shortcut{{Key: "C-r", Desc: "roster"}}, shortcuts...)
	}
	var hints []string
	for _, sc := range shortcuts {
		hints = append(hints, theme.ShortcutKey.Render(sc.Key)+" "+theme.ShortcutDesc.Render(sc.Desc))
	}
	right := strings.Join(hints, "  ")

	gap := s.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		// Narrow terminal: drop the hints before truncating identity.
		right = ""
		gap = s.Width - lipgloss.Width(left) - 2
		if gap < 0 {
			left = util.TruncateWidth(left, s.Width-2)
			gap = 0
		}
	}

	return theme.StatusBar.Width(s.Width).Render(left + strings.Repeat(" ", gap) + right)
}
