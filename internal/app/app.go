// Package app runs the terminal chat client.
package app

import (
	"context"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	mcqchat "github.com/medprep/mcqgen/internal/chat"
	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/router"
	"github.com/medprep/mcqgen/internal/screen"
	chatscreen "github.com/medprep/mcqgen/internal/screens/chat"
	"github.com/medprep/mcqgen/internal/screens/history"
	"github.com/medprep/mcqgen/internal/screens/welcome"
	"github.com/medprep/mcqgen/internal/store"
	"github.com/medprep/mcqgen/internal/ui/layout"
)

// Options wires the TUI to the generation backend.
type Options struct {
	Orchestrator *mcqchat.Orchestrator
	// Runs backs the history screen. Nil disables it.
	Runs         store.RunRepo
	ModelID      string
	MaxQuestions int
	Log          *logger.Logger
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	status string
	width  int
	height int
}

func newAppModel(first screen.Screen, status string) AppModel {
	return AppModel{router: router.New(first), status: status}
}

func (m AppModel) Init() tea.Cmd {
	if active := m.router.Active(); active != nil {
		return active.Init()
	}
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
		}
	}

	return m, m.router.Update(msg)
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}
	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}
	header := layout.RenderHeader(title, m.status, m.width)

	hints := []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	if hp, ok := active.(screen.KeyHintProvider); ok {
		hints = hp.KeyHints()
	} else if m.router.Depth() > 1 {
		hints = []layout.KeyHint{{Key: "Esc", Description: "Back"}, {Key: "Ctrl+C", Description: "Quit"}}
	}
	footer := layout.RenderFooter(hints, m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	content := m.router.View(m.width, contentHeight)
	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

// Run starts the TUI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	surface := chatscreen.NewSurface()
	sess := mcqchat.NewSession(opts.Orchestrator, surface, mcqchat.SessionOptions{
		Surface:      "tui",
		MaxQuestions: opts.MaxQuestions,
		Log:          log,
	})
	defer sess.Close()

	var openHistory func() screen.Screen
	if opts.Runs != nil {
		openHistory = func() screen.Screen { return history.New(opts.Runs) }
	}
	first := welcome.New(func() screen.Screen {
		return chatscreen.New(ctx, sess, openHistory)
	})

	p := tea.NewProgram(newAppModel(first, opts.ModelID), tea.WithContext(ctx))
	surface.Attach(p.Send)

	_, err := p.Run()
	if err != nil && ctx.Err() == nil {
		log.Error("tui exited", "error", err)
		return err
	}
	return nil
}
