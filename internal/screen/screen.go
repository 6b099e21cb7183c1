// Package screen defines what the TUI router can display.
package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/medprep/mcqgen/internal/ui/layout"
)

// Screen is one full-window view of the TUI.
type Screen interface {
	Init() tea.Cmd

	// Update handles a message and returns the screen to keep showing.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the area between header and footer.
	View(width, height int) string

	// Title is shown in the header.
	Title() string
}

// KeyHintProvider lets a screen choose its footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}
