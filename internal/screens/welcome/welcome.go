// Package welcome is the splash screen shown when the TUI starts.
package welcome

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/medprep/mcqgen/internal/chat"
	"github.com/medprep/mcqgen/internal/router"
	"github.com/medprep/mcqgen/internal/screen"
	"github.com/medprep/mcqgen/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	textReveal   = 400 * time.Millisecond
	hintReveal   = 1200 * time.Millisecond
)

type tickMsg time.Time

// WelcomeScreen shows the banner and usage instructions, then hands over
// to the screen built by next on the first key press.
type WelcomeScreen struct {
	next         func() screen.Screen
	elapsed      time.Duration
	transitioned bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen.
func New(next func() screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{next: next}
}

func (w *WelcomeScreen) Title() string {
	return ""
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		if w.elapsed >= hintReveal {
			return w, nil
		}
		w.elapsed += tickInterval
		return w, tick()

	case tea.KeyPressMsg:
		return w, w.transition()
	}
	return w, nil
}

func (w *WelcomeScreen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	w.transitioned = true
	next := w.next()
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: next}
	}
}

func (w *WelcomeScreen) View(width, height int) string {
	sections := []string{RenderBanner(width)}

	if w.elapsed >= textReveal {
		card := theme.Card.
			Width(min(width-4, 84)).
			Foreground(theme.Text).
			Render(chat.WelcomeText)
		sections = append(sections, "", card)
	}
	if w.elapsed >= hintReveal {
		sections = append(sections, "", theme.Hint.Render("press any key to start"))
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.Join(sections, "\n"))
}
