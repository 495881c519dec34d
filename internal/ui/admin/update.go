// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/relay-tui/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.Resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RosterLoadedMsg:
		if msg.Err != nil {
			return m, m.banner.Show(components.BannerError, "Could not load roster: "+msg.Err.Error())
		}
		m.users = msg.Users
		m.applyFilter()
		return m, nil

	case UserUpdatedMsg:
		if msg.Err != nil {
			return m, m.banner.Show(components.BannerError, "Role change failed: "+msg.Err.Error())
		}
		for i := range m.users {
			if m.users[i].ID == msg.User.ID {
				m.users[i] = msg.User
			}
		}
		m.applyFilter()
		return m, nil

	case UserDeletedMsg:
		if msg.Err != nil {
			return m, m.banner.Show(components.BannerError, "Delete failed: "+msg.Err.Error())
		}
		kept := m.users[:0]
		for _, u := range m.users {
			if u.ID != msg.UserID {
				kept = append(kept, u)
			}
		}
		m.users = kept
		m.applyFilter()
		return m, nil

	case components.BannerExpiredMsg:
		m.banner.Expire(msg)
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.selected > 0 {
			m.selected--
		}
		m.pendingDelete = ""
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		if m.selected < len(m.filtered)-1 {
			m.selected++
		}
		m.pendingDelete = ""
		return m, nil

	case key.Matches(msg, m.keyMap.Search):
		m.searching = true
		m.search.Focus()
		return m, nil

	case key.Matches(msg, m.keyMap.Cancel):
		m.pendingDelete = ""
		m.banner.Dismiss()
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.applyFilter()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Role):
		user, ok := m.selectedUser()
		if !ok {
			return m, nil
		}
		if user.ID == m.local.ID {
			return m, m.banner.Show(components.BannerWarn, "You cannot change your own role")
		}
		return m, toggleRoleCmd(m.dir, user)

	case key.Matches(msg, m.keyMap.Delete):
		user, ok := m.selectedUser()
		if !ok {
			return m, nil
		}
		if user.ID == m.local.ID {
			return m, m.banner.Show(components.BannerWarn, "You cannot delete your own account")
		}
		// Destructive action: require the same key twice on the same
		// row.
		if m.pendingDelete != user.ID {
			m.pendingDelete = user.ID
			return m, m.banner.Show(components.BannerWarn, "Press C-d again to delete "+user.Username)
		}
		m.pendingDelete = ""
		return m, deleteUserCmd(m.dir, user.ID)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.applyFilter()
		return m, nil
	case msg.Type == tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}
