// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/relay-tui/internal/ui/components"
	"github.com/morganforge/relay-tui/internal/util"
)

// Layout constants. The sidebar collapses before the list does on
// narrow terminals.
const (
	listPaneWidth    = 28
	sidebarWidth     = 24
	minSidebarWindow = 100
	minListWindow    = 60
	chromeHeight     = 5 // header, typing line, composer, banner, status bar
)

// =============================================================================
// VIEW
// =============================================================================

func (m Model) View() string {
	if m.width == 0 {
		return "Starting relay..."
	}

	listWidth, threadWidth, sideWidth := m.paneWidths()

	var panes []string
	if listWidth > 0 {
		panes = append(panes, m.renderList(listWidth))
	}
	panes = append(panes, m.renderThreadPane(threadWidth))
	if sideWidth > 0 {
		panes = append(panes, m.renderSidebar(sideWidth))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes...)

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	if banner := m.banner.View(m.theme, m.width); banner != "" {
		sb.WriteString(banner)
		sb.WriteString("\n")
	}
	sb.WriteString(m.statusBar().Render(m.theme))
	return m.theme.App.Render(sb.String())
}

// paneWidths computes the horizontal split. Zero widths mean the pane
// is hidden at the current terminal size.
func (m Model) paneWidths() (list, thread, side int) {
	list = listPaneWidth
	side = sidebarWidth
	if m.width < minSidebarWindow {
		side = 0
	}
	if m.width < minListWindow {
		list = 0
	}
	thread = m.width - list - side
	if thread < 20 {
		thread = 20
	}
	return list, thread, side
}

func (m Model) threadHeight() int {
	h := m.height - chromeHeight
	if h < 3 {
		h = 3
	}
	return h
}

// =============================================================================
// PANES
// =============================================================================

func (m Model) renderHeader() string {
	title := "no conversation selected"
	if active := m.store.ActiveConversation(); active != "" {
		if conv, ok := m.store.Conversation(active); ok {
			title = conv.DisplayTitle(m.store.LocalUser().ID)
		}
	}
	brand := m.theme.Brand.Render("relay")
	line := brand + "  " + title
	if m.spinner.Active() {
		line += "  " + m.spinner.View(m.theme)
	}
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderList(width int) string {
	convs := m.store.Conversations()
	inner := width - 3

	var rows []string
	if m.store.Degraded() {
		rows = append(rows, m.theme.ListPreview.Render("(cached)"))
	}
	for i, conv := range convs {
		title := util.TruncateWidth(conv.DisplayTitle(m.store.LocalUser().ID), inner)
		style := m.theme.ListItem
		if i == m.selected && m.focus == FocusList {
			style = m.theme.ListItemSelected
		}
		row := style.Render(title)
		if conv.UnreadCount > 0 {
			row += " " + m.theme.UnreadBadge.Render(strconv.Itoa(conv.UnreadCount))
		}
		rows = append(rows, row)
		if preview := conv.Preview(); preview != "" {
			rows = append(rows, "  "+m.theme.ListPreview.Render(util.TruncateWidth(preview, inner-2)))
		}
	}
	if len(rows) == 0 {
		rows = append(rows, m.theme.ListPreview.Render("No conversations"))
	}

	return m.theme.ListPane.
		Width(width).
		Height(m.threadHeight()).
		Render(strings.Join(rows, "\n"))
}

func (m Model) renderThreadPane(width int) string {
	var sb strings.Builder
	sb.WriteString(m.theme.Thread.Width(width).Render(m.viewport.View()))
	sb.WriteString("\n")
	sb.WriteString(m.renderTypingLine())
	sb.WriteString("\n")
	sb.WriteString(m.renderComposer(width))
	return sb.String()
}

func (m Model) renderComposer(width int) string {
	if m.focus == FocusAttach {
		return m.theme.Composer.Width(width).Render(m.attach.View())
	}
	if m.focus == FocusStart {
		return m.theme.Composer.Width(width).Render(m.start.View())
	}
	line := m.input.View()
	if len(m.attachments) > 0 {
		tags := make([]string, len(m.attachments))
		for i, p := range m.attachments {
			tags[i] = m.theme.AttachmentTag.Render("[" + filepath.Base(p) + "]")
		}
		line = strings.Join(tags, " ") + "\n" + line
	}
	return m.theme.Composer.Width(width).Render(line)
}

func (m Model) renderSidebar(width int) string {
	active := m.store.ActiveConversation()
	rows := []string{m.theme.SidebarTitle.Render("People")}

	if conv, ok := m.store.Conversation(active); ok {
		localID := m.store.LocalUser().ID
		for _, p := range conv.Participants {
			if p.UserID == localID {
				continue
			}
			presence := m.store.Presence(p.UserID)
			row := m.theme.PresenceStyle(presence.Status).Render(presence.Glyph()) +
				" " + util.TruncateWidth(p.DisplayName, width-4)
			rows = append(rows, row)
			if presence.StatusText != "" {
				rows = append(rows, "  "+m.theme.StatusText.Render(util.TruncateWidth(presence.StatusText, width-4)))
			}
		}
	}

	return m.theme.Sidebar.
		Width(width).
		Height(m.threadHeight()).
		Render(strings.Join(rows, "\n"))
}

func (m Model) statusBar() components.StatusBar {
	local := m.store.LocalUser()
	return components.StatusBar{
		Username:  local.Username,
		Role:      local.Role,
		Connected: m.connected,
		Degraded:  m.store.Degraded(),
		Width:     m.width,
	}
}

