// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/morganforge/relay-tui/internal/model"
)

// Theme holds every styled component for the application. It detects
// the terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App    lipgloss.Style
	Header lipgloss.Style
	Brand  lipgloss.Style

	// ==========================================================================
	// CONVERSATION LIST PANE
	// ==========================================================================

	ListPane         lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListPreview      lipgloss.Style
	UnreadBadge      lipgloss.Style

	// ==========================================================================
	// MESSAGE THREAD
	// ==========================================================================

	Thread         lipgloss.Style
	SenderOwn      lipgloss.Style
	SenderPeer     lipgloss.Style
	MessageOwn     lipgloss.Style
	MessagePeer    lipgloss.Style
	MessagePending lipgloss.Style
	MessageFailed  lipgloss.Style
	Timestamp      lipgloss.Style
	TypingLine     lipgloss.Style
	AttachmentTag  lipgloss.Style

	// ==========================================================================
	// COMPOSER
	// ==========================================================================

	Composer       lipgloss.Style
	ComposerPrompt lipgloss.Style

	// ==========================================================================
	// PRESENCE SIDEBAR
	// ==========================================================================

	Sidebar        lipgloss.Style
	SidebarTitle   lipgloss.Style
	PresenceOnline lipgloss.Style
	PresenceAway   lipgloss.Style
	PresenceDND    lipgloss.Style
	PresenceOff    lipgloss.Style
	StatusText     lipgloss.Style

	// ==========================================================================
	// STATUS BAR AND BANNERS
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusOnline lipgloss.Style
	StatusOff    lipgloss.Style
	ErrorBanner  lipgloss.Style
	WarnBanner   lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// ADMIN ROSTER
	// ==========================================================================

	AdminTitle       lipgloss.Style
	AdminRow         lipgloss.Style
	AdminRowSelected lipgloss.Style
	AdminRole        lipgloss.Style
}

// NewTheme builds the theme for the current terminal. themeMode is the
// configured "dark", "light" or "auto".
func NewTheme(themeMode string) *Theme {
	output := termenv.DefaultOutput()

	isDark := output.HasDarkBackground()
	switch themeMode {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: output.Profile,
	}

	t.App = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Header = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.Brand = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	t.ListPane = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.ListItem = lipgloss.NewStyle().Foreground(TextPrimary).Padding(0, 1)
	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Bold(true).
		Padding(0, 1)
	t.ListPreview = lipgloss.NewStyle().Foreground(TextMuted)
	t.UnreadBadge = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Rose).
		Padding(0, 1).
		Bold(true)

	t.Thread = lipgloss.NewStyle().Padding(0, 1)
	t.SenderOwn = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.SenderPeer = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.MessageOwn = lipgloss.NewStyle().Foreground(OwnMessageFg)
	t.MessagePeer = lipgloss.NewStyle().Foreground(PeerMessageFg)
	t.MessagePending = lipgloss.NewStyle().Foreground(PendingMessageFg).Italic(true)
	t.MessageFailed = lipgloss.NewStyle().Foreground(Rose).Strikethrough(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.TypingLine = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.AttachmentTag = lipgloss.NewStyle().Foreground(Amber)

	t.Composer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.ComposerPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Overlay).
		PaddingLeft(1)
	t.SidebarTitle = lipgloss.NewStyle().Foreground(TextSecondary).Bold(true)
	t.PresenceOnline = lipgloss.NewStyle().Foreground(Emerald)
	t.PresenceAway = lipgloss.NewStyle().Foreground(Amber)
	t.PresenceDND = lipgloss.NewStyle().Foreground(Rose)
	t.PresenceOff = lipgloss.NewStyle().Foreground(TextMuted)
	t.StatusText = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusOnline = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusOff = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.ErrorBanner = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(RoseDeep).
		Padding(0, 1).
		Bold(true)
	t.WarnBanner = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.AdminTitle = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.AdminRow = lipgloss.NewStyle().Foreground(TextPrimary)
	t.AdminRowSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple).
		Bold(true)
	t.AdminRole = lipgloss.NewStyle().Foreground(Amber)

	return t
}

// PresenceStyle returns the style for a presence status glyph.
func (t *Theme) PresenceStyle(status model.PresenceStatus) lipgloss.Style {
	switch status {
	case model.PresenceOnline:
		return t.PresenceOnline
	case model.PresenceAway:
		return t.PresenceAway
	case model.PresenceDND:
		return t.PresenceDND
	default:
		return t.PresenceOff
	}
}

// Resize records the terminal dimensions for layout computations.
func (t *Theme) Resize(width, height int) {
	t.Width = width
	t.Height = height
}
