// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"strconv"
	"strings"

	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.theme.AdminTitle.Render("User roster"))
	sb.WriteString("  ")
	sb.WriteString(m.theme.ShortcutDesc.Render(strconv.Itoa(len(m.filtered)) + " of " + strconv.Itoa(len(m.users)) + " users"))
	sb.WriteString("\n")

	if m.searching || m.search.Value() != "" {
		sb.WriteString(m.search.View())
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if len(m.filtered) == 0 {
		sb.WriteString(m.theme.ShortcutDesc.Render("No matching users"))
		sb.WriteString("\n")
	}
	for i, u := range m.filtered {
		sb.WriteString(m.renderRow(i, u))
		sb.WriteString("\n")
	}

	if banner := m.banner.View(m.theme, m.width); banner != "" {
		sb.WriteString("\n")
		sb.WriteString(banner)
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderHints())
	return sb.String()
}

func (m Model) renderRow(i int, u model.User) string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	name := u.Username
	if u.DisplayName != "" && u.DisplayName != u.Username {
		name += " (" + u.DisplayName + ")"
	}
	row := util.TruncateWidth(name, width-10)
	if u.Role == model.RoleAdmin {
		row += " " + m.theme.AdminRole.Render("admin")
	}
	if u.ID == m.local.ID {
		row += " " + m.theme.ShortcutDesc.Render("(you)")
	}

	style := m.theme.AdminRow
	if i == m.selected && !m.searching {
		style = m.theme.AdminRowSelected
	}
	return style.Render(row)
}

func (m Model) renderHints() string {
	hints := []struct{ k, d string }{
		{"/", "search"},
		{"r", "toggle role"},
		{"C-d", "delete"},
		{"C-r", "back to chat"},
	}
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = m.theme.ShortcutKey.Render(h.k) + " " + m.theme.ShortcutDesc.Render(h.d)
	}
	return strings.Join(parts, "  ")
}
