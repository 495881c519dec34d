// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/ui/components"
	"github.com/morganforge/relay-tui/internal/ui/styles"
)

const rosterTimeout = 15 * time.Second

// Directory is the slice of the auth service the roster uses.
// *api.Client satisfies it.
type Directory interface {
	Users(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user model.User) (*model.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// =============================================================================
// MESSAGES
// =============================================================================

// RosterLoadedMsg carries the refreshed user list.
type RosterLoadedMsg struct {
	Users []model.User
	Err   error
}

// UserUpdatedMsg signals a role change round trip finished.
type UserUpdatedMsg struct {
	User model.User
	Err  error
}

// UserDeletedMsg signals a delete round trip finished.
type UserDeletedMsg struct {
	UserID string
	Err    error
}

// =============================================================================
// KEYS
// =============================================================================

// KeyMap binds the roster actions.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Search key.Binding
	Role   key.Binding
	Delete key.Binding
	Cancel key.Binding
	Back   key.Binding
}

// DefaultKeyMap returns the roster bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Role:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "toggle role")),
		Delete: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("C-d", "delete user")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Back:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("C-r", "back to chat")),
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the roster screen.
type Model struct {
	dir   Directory
	theme *styles.Theme
	local model.User

	users    []model.User
	filtered []model.User
	selected int

	search    textinput.Model
	searching bool

	// pendingDelete holds the user ID awaiting a confirming second
	// delete keypress.
	pendingDelete string

	banner components.Banner
	keyMap KeyMap
	width  int
	height int
}

// New creates the roster screen. local is the signed-in admin; the
// roster never lets admins delete themselves.
func New(dir Directory, theme *styles.Theme, local model.User) Model {
	search := textinput.New()
	search.Placeholder = "Search users"
	search.Prompt = "/ "
	search.CharLimit = 120

	return Model{
		dir:    dir,
		theme:  theme,
		local:  local,
		search: search,
		keyMap: DefaultKeyMap(),
	}
}

// Init loads the roster.
func (m Model) Init() tea.Cmd {
	return loadRosterCmd(m.dir)
}

// applyFilter rebuilds the visible slice from the search query.
func (m *Model) applyFilter() {
	m.filtered = filterUsers(m.users, m.search.Value())
	if m.selected >= len(m.filtered) {
		m.selected = 0
	}
}

// selectedUser returns the highlighted row, if any.
func (m *Model) selectedUser() (model.User, bool) {
	if m.selected < 0 || m.selected >= len(m.filtered) {
		return model.User{}, false
	}
	return m.filtered[m.selected], true
}

// =============================================================================
// COMMANDS
// =============================================================================

func loadRosterCmd(dir Directory) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), rosterTimeout)
		defer cancel()
		users, err := dir.Users(ctx)
		return RosterLoadedMsg{Users: users, Err: err}
	}
}

func toggleRoleCmd(dir Directory, user model.User) tea.Cmd {
	if user.Role == model.RoleAdmin {
		user.Role = model.RoleMember
	} else {
		user.Role = model.RoleAdmin
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), rosterTimeout)
		defer cancel()
		updated, err := dir.UpdateUser(ctx, user)
		if err != nil {
			return UserUpdatedMsg{User: user, Err: err}
		}
		return UserUpdatedMsg{User: *updated}
	}
}

func deleteUserCmd(dir Directory, userID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), rosterTimeout)
		defer cancel()
		return UserDeletedMsg{UserID: userID, Err: dir.DeleteUser(ctx, userID)}
	}
}
