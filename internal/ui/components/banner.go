// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Non-blocking notification banner. Degraded backends and failed sends
// surface here and auto-dismiss; they never take over the screen.
package components

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/relay-tui/internal/ui/styles"
	"github.com/morganforge/relay-tui/internal/util"
)

// BannerKind selects the banner's severity styling.
type BannerKind int

const (
	// BannerWarn is for degraded-but-working states.
	BannerWarn BannerKind = iota
	// BannerError is for failed user-initiated actions.
	BannerError
)

// Dismiss durations. Errors stay longer so they can be read.
const (
	warnBannerDuration  = 4 * time.Second
	errorBannerDuration = 8 * time.Second
)

// BannerExpiredMsg asks the UI to clear a banner if it is still the
// one showing.
type BannerExpiredMsg struct {
	ID int
}

// =============================================================================
// BANNER
// =============================================================================

// Banner is a single dismissible notification line.
type Banner struct {
	id      int
	message string
	kind    BannerKind
	visible bool
}

// Show replaces the banner content and returns the expiry command.
func (b *Banner) Show(kind BannerKind, message string) tea.Cmd {
	b.id++
	b.message = message
	b.kind = kind
	b.visible = true

	id := b.id
	duration := warnBannerDuration
	if kind == BannerError {
		duration = errorBannerDuration
	}
	return tea.Tick(duration, func(time.Time) tea.Msg {
		return BannerExpiredMsg{ID: id}
	})
}

// Expire clears the banner if the expiry matches the showing banner.
// A newer banner survives an older banner's timer.
func (b *Banner) Expire(msg BannerExpiredMsg) {
	if msg.ID == b.id {
		b.visible = false
	}
}

// Dismiss clears the banner unconditionally.
func (b *Banner) Dismiss() {
	b.visible = false
}

// Visible reports whether a banner is showing.
func (b *Banner) Visible() bool {
	return b.visible
}

// View renders the banner line, empty when hidden.
func (b *Banner) View(theme *styles.Theme, width int) string {
	if !b.visible {
		return ""
	}
	style := theme.WarnBanner
	if b.kind == BannerError {
		style = theme.ErrorBanner
	}
	return style.Render(util.TruncateWidth(b.message, width-2))
}
