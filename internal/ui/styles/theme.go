// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Header
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// Sidebar (session list)
	Sidebar             lipgloss.Style
	SidebarTitle        lipgloss.Style
	SidebarItem         lipgloss.Style
	SidebarItemSelected lipgloss.Style
	SidebarMeta         lipgloss.Style

	// Transcript
	UserLabel   lipgloss.Style
	ModelLabel  lipgloss.Style
	MessageBody lipgloss.Style
	Attachment  lipgloss.Style
	ErrorText   lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusCount  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Spinner
	Spinner lipgloss.Style
}

// New builds a theme. The theme argument is "dark", "light", or "auto";
// auto follows the terminal background.
func New(theme string) *Theme {
	isDark := termenv.HasDarkBackground()
	switch theme {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.HeaderSubtitle = lipgloss.NewStyle().Foreground(TextSecondary)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.SidebarItem = lipgloss.NewStyle().Foreground(TextSecondary)
	t.SidebarItemSelected = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true).Background(SurfaceBright)
	t.SidebarMeta = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().Foreground(UserAccent).Bold(true)
	t.ModelLabel = lipgloss.NewStyle().Foreground(ModelAccent).Bold(true)
	t.MessageBody = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Attachment = lipgloss.NewStyle().Foreground(Amber)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.StatusCount = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)

	return t
}
