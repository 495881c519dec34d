// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/morganforge/relay-tui/internal/config"
	"github.com/morganforge/relay-tui/internal/store"
	"github.com/morganforge/relay-tui/internal/ui/components"
	"github.com/morganforge/relay-tui/internal/ui/styles"
)

// =============================================================================
// FOCUS
// =============================================================================

// Focus identifies which pane receives keystrokes.
type Focus int

const (
	// FocusList is the conversation list pane.
	FocusList Focus = iota
	// FocusComposer is the message input.
	FocusComposer
	// FocusAttach is the attachment path prompt.
	FocusAttach
	// FocusStart is the new-conversation username prompt.
	FocusStart
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the conversation screen.
type Model struct {
	// State
	store *store.Store
	theme *styles.Theme
	ui    config.UIConfig

	// Dimensions
	width  int
	height int

	// Focus and selection
	focus    Focus
	selected int

	// Components
	viewport viewport.Model
	input    textinput.Model
	attach   textinput.Model
	start    textinput.Model
	spinner  components.Spinner
	banner   components.Banner
	keyMap   KeyMap

	// Attachment staging
	attachments []string

	// Connection state mirrored from store events
	connected bool

	// Markdown renderer, nil when markdown is disabled
	renderer *glamour.TermRenderer
}

// New creates the conversation screen bound to a store.
func New(st *store.Store, theme *styles.Theme, ui config.UIConfig) Model {
	input := textinput.New()
	input.Placeholder = "Message"
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	attach := textinput.New()
	attach.Placeholder = "Path to file"
	attach.Prompt = "attach: "

	start := textinput.New()
	start.Placeholder = "Username"
	start.Prompt = "to: "

	m := Model{
		store:   st,
		theme:   theme,
		ui:      ui,
		focus:   FocusComposer,
		input:   input,
		attach:  attach,
		start:   start,
		spinner: components.NewSpinner("Loading conversation"),
		keyMap:  DefaultKeyMap(),
	}
	if ui.Markdown {
		m.renderer = newMarkdownRenderer(80, theme.IsDark)
	}
	return m
}

// Init starts the initial conversation load.
func (m Model) Init() tea.Cmd {
	return loadConversationsCmd(m.store, false)
}

// newMarkdownRenderer builds the glamour renderer for message bodies.
func newMarkdownRenderer(width int, dark bool) *glamour.TermRenderer {
	style := glamour.WithStandardStyle("light")
	if dark {
		style = glamour.WithStandardStyle("dark")
	}
	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil
	}
	return r
}
