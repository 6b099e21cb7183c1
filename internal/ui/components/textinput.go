// Package components holds reusable TUI widgets.
package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/medprep/mcqgen/internal/ui/theme"
)

// PromptInput is a single-line input with a submit history that can be
// recalled with the up and down keys.
type PromptInput struct {
	Model   textinput.Model
	history []string
	cursor  int
}

// NewPromptInput creates a focused input.
func NewPromptInput(placeholder string, charLimit int) PromptInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	if charLimit > 0 {
		ti.CharLimit = charLimit
	}
	ti.Focus()
	return PromptInput{Model: ti}
}

// Init returns the initial command.
func (p PromptInput) Init() tea.Cmd {
	return p.Model.Focus()
}

// Update handles history navigation and forwards everything else to the
// text input.
func (p PromptInput) Update(msg tea.Msg) (PromptInput, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok && len(p.history) > 0 {
		switch kmsg.String() {
		case "up":
			p.cursor = max(p.cursor-1, 0)
			p.Model.SetValue(p.history[p.cursor])
			p.Model.CursorEnd()
			return p, nil
		case "down":
			p.cursor = min(p.cursor+1, len(p.history))
			if p.cursor == len(p.history) {
				p.Model.SetValue("")
			} else {
				p.Model.SetValue(p.history[p.cursor])
			}
			p.Model.CursorEnd()
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.Model, cmd = p.Model.Update(msg)
	return p, cmd
}

// Take returns the trimmed value, records it in history and clears the
// input. Empty input returns "".
func (p *PromptInput) Take() string {
	v := strings.TrimSpace(p.Model.Value())
	if v == "" {
		return ""
	}
	p.history = append(p.history, v)
	p.cursor = len(p.history)
	p.Model.SetValue("")
	return v
}

// View renders the input inside a bordered box.
func (p PromptInput) View(width int) string {
	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Render(p.Model.View())
}
