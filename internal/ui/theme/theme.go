// Package theme holds the TUI palette and shared styles.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Clinical palette: calm blues with a warm accent for warnings.
var (
	Primary   = lipgloss.Color("#3B82F6")
	Secondary = lipgloss.Color("#0EA5E9")
	Accent    = lipgloss.Color("#F59E0B")
	Success   = lipgloss.Color("#10B981")
	Error     = lipgloss.Color("#EF4444")
	Text      = lipgloss.Color("#E2E8F0")
	TextDim   = lipgloss.Color("#94A3B8")
	BgCard    = lipgloss.Color("#1E293B")
	Border    = lipgloss.Color("#334155")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		Align(lipgloss.Center)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

var (
	// UserMessage frames what the user typed.
	UserMessage = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// BotMessage frames generated output.
	BotMessage = lipgloss.NewStyle().
			Foreground(Text).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(Border).
			PaddingLeft(1)

	Selected = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)
)
