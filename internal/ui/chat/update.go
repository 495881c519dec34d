// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/relay-tui/internal/store"
	"github.com/morganforge/relay-tui/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StoreEventMsg:
		return m.handleStoreEvent(msg.Event)

	case ConversationsLoadedMsg:
		m.spinner.Stop()
		if msg.Err != nil {
			return m, m.banner.Show(components.BannerWarn, "Working from cached conversations: "+msg.Err.Error())
		}
		m.clampSelection()
		return m, nil

	case ConversationSelectedMsg:
		m.spinner.Stop()
		if msg.Err != nil {
			return m, m.banner.Show(components.BannerError, "Could not open conversation: "+msg.Err.Error())
		}
		m.refreshViewport(true)
		return m, nil

	case ConversationStartedMsg:
		m.spinner.Stop()
		if msg.Err != nil {
			return m, m.banner.Show(components.BannerError, "Could not start conversation: "+msg.Err.Error())
		}
		m.selectByID(msg.ConversationID)
		m.focus = FocusComposer
		m.input.Focus()
		m.refreshViewport(true)
		return m, nil

	case MessageSentMsg:
		// Send failures surface through SendFailed store events, which
		// also carry the composer text to restore.
		return m, nil

	case FilesSentMsg:
		if msg.Err != nil {
			return m, m.banner.Show(components.BannerError, "Upload failed: "+msg.Err.Error())
		}
		return m, nil

	case components.BannerExpiredMsg:
		m.banner.Expire(msg)
		return m, nil
	}

	return m, m.spinner.Update(msg)
}

// =============================================================================
// WINDOW AND STORE EVENTS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.Resize(msg.Width, msg.Height)

	_, threadWidth, _ := m.paneWidths()
	m.viewport.Width = threadWidth
	m.viewport.Height = m.threadHeight()
	m.input.Width = threadWidth - 4
	m.attach.Width = threadWidth - 4
	m.start.Width = threadWidth - 4

	if m.ui.Markdown {
		m.renderer = newMarkdownRenderer(threadWidth-2, m.theme.IsDark)
	}
	m.refreshViewport(false)
	return m, nil
}

func (m Model) handleStoreEvent(ev store.Event) (Model, tea.Cmd) {
	switch ev := ev.(type) {
	case store.ConversationsUpdated:
		m.clampSelection()
		return m, nil

	case store.MessagesUpdated:
		if ev.ConversationID == m.store.ActiveConversation() {
			m.refreshViewport(m.viewport.AtBottom())
		}
		return m, nil

	case store.TypingUpdated, store.PresenceUpdated:
		return m, nil

	case store.SendFailed:
		if m.input.Value() == "" {
			m.input.SetValue(ev.Content)
			m.input.CursorEnd()
		}
		m.refreshViewport(false)
		return m, m.banner.Show(components.BannerError, "Message not sent: "+ev.Err.Error())

	case store.ConnectionChanged:
		m.connected = ev.Online
		if !ev.Online {
			return m, m.banner.Show(components.BannerWarn, "Connection lost, reconnecting...")
		}
		return m, nil
	}
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keyMap.SwitchPane):
		return m.cycleFocus(), nil
	case key.Matches(msg, m.keyMap.Dismiss):
		m.banner.Dismiss()
		if m.focus == FocusAttach || m.focus == FocusStart {
			m.focus = FocusComposer
			m.attach.SetValue("")
			m.start.SetValue("")
		}
		return m, nil
	case key.Matches(msg, m.keyMap.Refresh):
		m.spinner = components.NewSpinner("Refreshing")
		return m, tea.Batch(m.spinner.Start(), loadConversationsCmd(m.store, true))
	case key.Matches(msg, m.keyMap.Attach):
		if m.focus == FocusAttach {
			m.focus = FocusComposer
		} else {
			m.focus = FocusAttach
			m.attach.Focus()
			m.input.Blur()
		}
		return m, nil
	case key.Matches(msg, m.keyMap.StartConv):
		if m.focus == FocusStart {
			m.focus = FocusComposer
		} else {
			m.focus = FocusStart
			m.start.Focus()
			m.input.Blur()
		}
		return m, nil
	}

	switch m.focus {
	case FocusList:
		return m.handleListKey(msg)
	case FocusAttach:
		return m.handleAttachKey(msg)
	case FocusStart:
		return m.handleStartKey(msg)
	default:
		return m.handleComposerKey(msg)
	}
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	convs := m.store.Conversations()
	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case key.Matches(msg, m.keyMap.Down):
		if m.selected < len(convs)-1 {
			m.selected++
		}
		return m, nil
	case key.Matches(msg, m.keyMap.Select):
		if m.selected >= len(convs) {
			return m, nil
		}
		id := convs[m.selected].ID
		m.focus = FocusComposer
		m.input.Focus()
		return m, selectConversationCmd(m.store, id)
	}
	return m, nil
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	active := m.store.ActiveConversation()

	if key.Matches(msg, m.keyMap.Send) {
		content := strings.TrimSpace(m.input.Value())
		if active == "" || (content == "" && len(m.attachments) == 0) {
			return m, nil
		}
		m.input.SetValue("")
		if len(m.attachments) > 0 {
			paths := m.attachments
			m.attachments = nil
			return m, sendFilesCmd(m.store, active, content, paths)
		}
		return m, sendMessageCmd(m.store, active, content)
	}

	switch {
	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	// Printable keystrokes signal the composing state to peers. The
	// store rate-limits the actual wire traffic.
	if active != "" && msg.Type == tea.KeyRunes {
		return m, tea.Batch(cmd, typingCmd(m.store, active))
	}
	return m, cmd
}

func (m Model) handleAttachKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Select) {
		path := strings.TrimSpace(m.attach.Value())
		if path != "" {
			m.attachments = append(m.attachments, path)
		}
		m.attach.SetValue("")
		m.focus = FocusComposer
		m.input.Focus()
		return m, nil
	}
	var cmd tea.Cmd
	m.attach, cmd = m.attach.Update(msg)
	return m, cmd
}

func (m Model) handleStartKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Select) {
		username := strings.TrimSpace(m.start.Value())
		m.start.SetValue("")
		m.focus = FocusComposer
		m.input.Focus()
		if username == "" {
			return m, nil
		}
		m.spinner = components.NewSpinner("Starting conversation")
		return m, tea.Batch(m.spinner.Start(), startConversationCmd(m.store, username))
	}
	var cmd tea.Cmd
	m.start, cmd = m.start.Update(msg)
	return m, cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func (m Model) cycleFocus() Model {
	switch m.focus {
	case FocusList:
		m.focus = FocusComposer
		m.input.Focus()
	default:
		m.focus = FocusList
		m.input.Blur()
	}
	return m
}

// selectByID moves the list cursor onto the named conversation.
func (m *Model) selectByID(id string) {
	for i, c := range m.store.Conversations() {
		if c.ID == id {
			m.selected = i
			return
		}
	}
}

// clampSelection keeps the list cursor inside the conversation list
// after the store replaces it.
func (m *Model) clampSelection() {
	n := len(m.store.Conversations())
	if m.selected >= n && n > 0 {
		m.selected = n - 1
	}
	if n == 0 {
		m.selected = 0
	}
}

// refreshViewport re-renders the active thread. When follow is set the
// viewport sticks to the newest message.
func (m *Model) refreshViewport(follow bool) {
	active := m.store.ActiveConversation()
	if active == "" {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(m.renderThread(m.store.Messages(active)))
	if follow {
		m.viewport.GotoBottom()
	}
}
