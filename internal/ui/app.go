// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui assembles the relay terminal interface: the chat screen,
// the admin roster, and the screen switching between them.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/relay-tui/internal/config"
	"github.com/morganforge/relay-tui/internal/model"
	"github.com/morganforge/relay-tui/internal/store"
	"github.com/morganforge/relay-tui/internal/ui/admin"
	"github.com/morganforge/relay-tui/internal/ui/chat"
	"github.com/morganforge/relay-tui/internal/ui/styles"
)

// screen identifies which view has the terminal.
type screen int

const (
	screenChat screen = iota
	screenAdmin
)

// SessionEndedMsg terminates the program, for example when the auth
// service revokes the session mid-run.
type SessionEndedMsg struct {
	Reason string
}

// StoreEventMsg delivers a store change notification into the update
// loop. The store's notify hook wraps events in this and hands them to
// Program.Send.
type StoreEventMsg struct {
	Event store.Event
}

// =============================================================================
// APP MODEL
// =============================================================================

// App is the root Bubble Tea model.
type App struct {
	screen screen
	chat   chat.Model
	admin  admin.Model
	local  model.User

	exitReason string
}

// NewApp builds the root model. The admin roster is constructed for
// everyone but only reachable for admins.
func NewApp(st *store.Store, dir admin.Directory, cfg *config.Config, local model.User) App {
	theme := styles.NewTheme(cfg.UI.Theme)
	return App{
		chat:  chat.New(st, theme, cfg.UI),
		admin: admin.New(dir, theme, local),
		local: local,
	}
}

func (a App) Init() tea.Cmd {
	return a.chat.Init()
}

// ExitReason is non-empty when the program quit because the session
// ended rather than by user request.
func (a App) ExitReason() string {
	return a.exitReason
}

// =============================================================================
// UPDATE
// =============================================================================

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Both screens track the terminal size so switching is
		// seamless.
		var chatCmd, adminCmd tea.Cmd
		a.chat, chatCmd = a.chat.Update(msg)
		a.admin, adminCmd = a.admin.Update(msg)
		return a, tea.Batch(chatCmd, adminCmd)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlR && a.local.IsAdmin() {
			return a.toggleAdmin()
		}

	case SessionEndedMsg:
		a.exitReason = msg.Reason
		return a, tea.Quit

	case StoreEventMsg:
		var cmd tea.Cmd
		a.chat, cmd = a.chat.Update(chat.StoreEventMsg{Event: msg.Event})
		return a, cmd

	// Results of chat and roster commands find their screen even when
	// the other one is showing.
	case chat.ConversationsLoadedMsg, chat.ConversationSelectedMsg,
		chat.ConversationStartedMsg, chat.MessageSentMsg, chat.FilesSentMsg:
		var cmd tea.Cmd
		a.chat, cmd = a.chat.Update(msg)
		return a, cmd

	case admin.RosterLoadedMsg, admin.UserUpdatedMsg, admin.UserDeletedMsg:
		var cmd tea.Cmd
		a.admin, cmd = a.admin.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	switch a.screen {
	case screenAdmin:
		a.admin, cmd = a.admin.Update(msg)
	default:
		a.chat, cmd = a.chat.Update(msg)
	}
	return a, cmd
}

func (a App) toggleAdmin() (tea.Model, tea.Cmd) {
	if a.screen == screenAdmin {
		a.screen = screenChat
		return a, nil
	}
	a.screen = screenAdmin
	return a, a.admin.Init()
}

// =============================================================================
// VIEW
// =============================================================================

func (a App) View() string {
	if a.screen == screenAdmin {
		return a.admin.View()
	}
	return a.chat.View()
}
