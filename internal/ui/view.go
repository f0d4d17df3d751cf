// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// view.go - layout and rendering for the TUI.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"queryquant/internal/model"
	"queryquant/internal/util"
)

// sidebarWidth is the fixed width of the session list column. Narrow
// terminals drop the sidebar entirely.
const sidebarWidth = 28

// minWidthForSidebar is the terminal width below which the sidebar hides.
const minWidthForSidebar = 72

// layout recomputes component sizes from the window dimensions.
func (m *Model) layout() {
	inputHeight := 4  // input box with border
	chromeHeight := 3 // header + status bar

	bodyWidth := m.width
	if m.showSidebar() {
		bodyWidth -= sidebarWidth
	}

	bodyHeight := m.height - inputHeight - chromeHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	m.viewport.Width = bodyWidth - 2
	m.viewport.Height = bodyHeight
	m.input.SetWidth(m.width - 6)
}

func (m Model) showSidebar() bool {
	return m.width >= minWidthForSidebar
}

// =============================================================================
// VIEW
// =============================================================================

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.renderHeader()
	body := m.renderBody()
	input := m.theme.InputContainer.Width(m.width - 2).Render(
		m.theme.InputPrompt.Render("> ") + m.input.View())
	status := m.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, status)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("queryquant")
	sub := m.theme.HeaderSubtitle.Render(fmt.Sprintf("%s · %s",
		m.cfg.Provider, m.activeModelName()))
	return m.theme.Header.Width(m.width - 2).Render(title + "  " + sub)
}

func (m Model) activeModelName() string {
	_, name, _ := m.cfg.ActiveProvider()
	return name
}

func (m Model) renderBody() string {
	if !m.showSidebar() {
		return m.viewport.View()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.viewport.View())
}

// renderSidebar lists saved sessions, newest first, highlighting the
// active one.
func (m Model) renderSidebar() string {
	var sb strings.Builder
	sb.WriteString(m.theme.SidebarTitle.Render("Sessions"))
	sb.WriteString("\n\n")

	sessions := m.controller.Sessions()
	current := m.controller.Current()

	if len(sessions) == 0 {
		sb.WriteString(m.theme.SidebarMeta.Render("none yet"))
	}
	maxRows := m.viewport.Height - 3
	for i, sess := range sessions {
		if i >= maxRows {
			sb.WriteString(m.theme.SidebarMeta.Render(fmt.Sprintf("… %d more", len(sessions)-i)))
			break
		}
		title := util.TruncateWidth(sess.Title, sidebarWidth-4)
		style := m.theme.SidebarItem
		if current != nil && sess.ID == current.ID {
			style = m.theme.SidebarItemSelected
		}
		sb.WriteString(style.Render(title))
		sb.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(sidebarWidth - 2).
		Height(m.viewport.Height).
		Render(sb.String())
}

// refreshTranscript re-renders the active session into the viewport and
// keeps it pinned to the bottom.
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	sess := m.controller.Current()
	if sess == nil || len(sess.Messages) == 0 {
		return m.theme.SidebarMeta.Render("\n  Start typing to begin a session.")
	}

	var sb strings.Builder
	for _, msg := range sess.Messages {
		label := m.theme.UserLabel.Render("You")
		if msg.Role == model.RoleModel {
			label = m.theme.ModelLabel.Render("Model")
		}
		sb.WriteString(label)
		sb.WriteString(m.theme.SidebarMeta.Render("  " + msg.Timestamp.Format("15:04")))
		sb.WriteString("\n")
		sb.WriteString(m.renderMessageBody(msg.Role, msg.Text))
		if msg.HasAttachments() {
			sb.WriteString(m.theme.Attachment.Render(fmt.Sprintf("  [%d image(s)]", len(msg.Attachments))))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if m.sending {
		sb.WriteString(m.spin.View())
		sb.WriteString(m.theme.SidebarMeta.Render(" thinking..."))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderMessageBody renders model replies as markdown when enabled;
// user turns always stay plain.
func (m *Model) renderMessageBody(role model.Role, text string) string {
	if role == model.RoleModel && m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			return strings.Trim(out, "\n") + "\n"
		}
	}
	return m.theme.MessageBody.Render(text) + "\n"
}

func (m Model) renderStatusBar() string {
	today := m.stats.Today()
	counts := m.theme.StatusCount.Render(fmt.Sprintf("%d today", today.Total()))
	detail := m.theme.ShortcutDesc.Render(fmt.Sprintf(" (%d app / %d ext)", today.InternalCount, today.ExternalCount))

	shortcuts := strings.Join([]string{
		m.shortcut("enter", "send"),
		m.shortcut("^N", "new"),
		m.shortcut("^R", "regen"),
		m.shortcut("^E", "edit"),
		m.shortcut("^T", "speak"),
		m.shortcut("^P/^O", "sessions"),
		m.shortcut("^C", "quit"),
	}, "  ")

	left := counts + detail
	if m.status != "" {
		left += "  " + m.status
	}

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(shortcuts)
	if gap < 1 {
		return m.theme.StatusBar.Render(left)
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + shortcuts)
}

func (m Model) shortcut(key, desc string) string {
	return m.theme.ShortcutKey.Render(key) + m.theme.ShortcutDesc.Render(" "+desc)
}
