// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/morganforge/relay-tui/internal/model"
)

// =============================================================================
// THREAD RENDERING
// =============================================================================

// renderThread draws the full message history for the viewport.
func (m *Model) renderThread(msgs []model.Message) string {
	if len(msgs) == 0 {
		return m.theme.TypingLine.Render("No messages yet. Say hello.")
	}

	var sb strings.Builder
	for i := range msgs {
		sb.WriteString(m.renderMessage(&msgs[i]))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderMessage draws one thread entry: sender header with presence,
// body, and delivery or upload state.
func (m *Model) renderMessage(msg *model.Message) string {
	localID := m.store.LocalUser().ID
	own := msg.SenderID == localID

	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderID
	}
	senderStyle := m.theme.SenderPeer
	if own {
		sender = "you"
		senderStyle = m.theme.SenderOwn
	}

	header := senderStyle.Render(sender)
	if !own {
		presence := m.store.Presence(msg.SenderID)
		header = m.theme.PresenceStyle(presence.Status).Render(presence.Glyph()) + " " + header
	}
	header += " " + m.theme.Timestamp.Render(msg.SentAt.Format(m.ui.TimestampFormat))

	switch msg.State {
	case model.DeliveryPending:
		header += " " + m.theme.MessagePending.Render("(sending)")
	case model.DeliveryFailed:
		header += " " + m.theme.MessageFailed.Render("(failed)")
	}

	body := m.renderBody(msg)
	if msg.Attachment != nil {
		body += "\n" + m.renderAttachment(msg.Attachment)
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	return sb.String()
}

// renderBody renders the message content: glamour markdown when
// enabled, chroma-highlighted code fences otherwise, plain text as a
// last resort.
func (m *Model) renderBody(msg *model.Message) string {
	content := strings.TrimRight(msg.Content, "\n")
	if content == "" {
		return ""
	}

	bodyStyle := m.theme.MessagePeer
	if msg.SenderID == m.store.LocalUser().ID {
		bodyStyle = m.theme.MessageOwn
	}
	if msg.State == model.DeliveryPending {
		bodyStyle = m.theme.MessagePending
	}

	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}

	if lang, code, ok := splitCodeFence(content); ok {
		return highlightCode(code, lang)
	}
	return bodyStyle.Render(content)
}

// renderAttachment draws the file tag under an attachment message.
func (m *Model) renderAttachment(att *model.Attachment) string {
	tag := att.FileName + " (" + formatSize(att.Size) + ")"
	switch att.Status {
	case model.UploadStatusUploading:
		tag += " uploading..."
	case model.UploadStatusFailed:
		return m.theme.MessageFailed.Render(tag + " upload failed")
	}
	return m.theme.AttachmentTag.Render("[" + tag + "]")
}

// renderTypingLine draws who is typing in the active conversation.
func (m *Model) renderTypingLine() string {
	active := m.store.ActiveConversation()
	if active == "" {
		return ""
	}
	indicators := m.store.TypingIndicators(active)
	if len(indicators) == 0 {
		return ""
	}

	names := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		name := ind.DisplayName
		if name == "" {
			name = ind.UserID
		}
		names = append(names, name)
	}

	line := names[0] + " is typing..."
	if len(names) > 1 {
		line = strings.Join(names, ", ") + " are typing..."
	}
	return m.theme.TypingLine.Render(line)
}

// =============================================================================
// HELPERS
// =============================================================================

// splitCodeFence extracts a single fenced code block when the whole
// message is one fence.
func splitCodeFence(content string) (lang, code string, ok bool) {
	if !strings.HasPrefix(content, "```") || !strings.HasSuffix(content, "```") {
		return "", "", false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")
	nl := strings.IndexByte(inner, '\n')
	if nl < 0 {
		return "", "", false
	}
	return strings.TrimSpace(inner[:nl]), strings.Trim(inner[nl+1:], "\n"), true
}

// highlightCode applies chroma syntax highlighting, falling back to the
// raw code on any failure.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	style := chromaStyles.Get("catppuccin-mocha")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// formatSize renders a byte count for the attachment tag.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	suffix := []string{"KB", "MB", "GB", "TB"}[exp]
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + suffix
}
