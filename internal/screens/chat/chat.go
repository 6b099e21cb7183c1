// Package chat is the TUI conversation screen: a scrolling transcript
// above an input line, backed by a generation session.
package chat

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	mcqchat "github.com/medprep/mcqgen/internal/chat"
	"github.com/medprep/mcqgen/internal/router"
	"github.com/medprep/mcqgen/internal/screen"
	"github.com/medprep/mcqgen/internal/ui/components"
	"github.com/medprep/mcqgen/internal/ui/layout"
	"github.com/medprep/mcqgen/internal/ui/theme"
)

const scrollStep = 10

// turnDoneMsg is sent when a submitted message has been fully handled.
type turnDoneMsg struct {
	Err error
}

type entry struct {
	user bool
	text string
}

// ChatScreen shows the conversation.
type ChatScreen struct {
	ctx     context.Context
	session *mcqchat.Session
	history func() screen.Screen

	input    components.PromptInput
	entries  []entry
	byHandle map[mcqchat.Handle]int
	scroll   int
	busy     bool
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)

// New creates a ChatScreen. history builds the screen opened with
// Ctrl+R and may be nil.
func New(ctx context.Context, session *mcqchat.Session, history func() screen.Screen) *ChatScreen {
	return &ChatScreen{
		ctx:      ctx,
		session:  session,
		history:  history,
		input:    components.NewPromptInput("e.g. Generate 10 MCQs on cardiology", 500),
		byHandle: make(map[mcqchat.Handle]int),
	}
}

func (c *ChatScreen) Title() string {
	return "Chat"
}

func (c *ChatScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{{Key: "Enter", Description: "Send"}}
	if c.busy {
		hints = append(hints, layout.KeyHint{Key: "Esc", Description: "Stop"})
	}
	hints = append(hints,
		layout.KeyHint{Key: "PgUp/PgDn", Description: "Scroll"},
		layout.KeyHint{Key: "Ctrl+R", Description: "History"},
		layout.KeyHint{Key: "Ctrl+C", Description: "Quit"},
	)
	return hints
}

func (c *ChatScreen) Init() tea.Cmd {
	return c.input.Init()
}

func (c *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case messageSentMsg:
		c.byHandle[msg.Handle] = len(c.entries)
		c.entries = append(c.entries, entry{text: msg.Text})
		c.scroll = 0
		return c, nil

	case messageUpdatedMsg:
		if i, ok := c.byHandle[msg.Handle]; ok {
			c.entries[i].text = msg.Text
		}
		return c, nil

	case turnDoneMsg:
		c.busy = c.session.Busy()
		if msg.Err != nil {
			c.entries = append(c.entries, entry{text: "⚠️ " + msg.Err.Error()})
		}
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := c.input.Take()
			if text == "" {
				return c, nil
			}
			c.entries = append(c.entries, entry{user: true, text: text})
			c.scroll = 0
			c.busy = true
			return c, c.submit(text)
		case "esc":
			if c.busy {
				c.session.Cancel()
			}
			return c, nil
		case "pgup":
			c.scroll += scrollStep
			return c, nil
		case "pgdown":
			c.scroll = max(c.scroll-scrollStep, 0)
			return c, nil
		case "ctrl+r":
			if c.history == nil {
				return c, nil
			}
			next := c.history()
			return c, func() tea.Msg { return router.PushScreenMsg{Screen: next} }
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *ChatScreen) submit(text string) tea.Cmd {
	sess, ctx := c.session, c.ctx
	return func() tea.Msg {
		if err := sess.Submit(ctx, text); err != nil {
			return turnDoneMsg{Err: err}
		}
		sess.Wait()
		return turnDoneMsg{}
	}
}

func (c *ChatScreen) View(width, height int) string {
	inputView := c.input.View(width - 2)

	status := theme.Hint.Render("Ask for MCQs on any topic, or a full blueprint exam.")
	if c.busy {
		status = lipgloss.NewStyle().Foreground(theme.Accent).Render("Generating… press Esc to stop")
	}

	avail := max(height-lipgloss.Height(inputView)-1, 0)
	body, off := layout.Tail(c.transcript(width-2), avail, c.scroll)
	c.scroll = off
	body = lipgloss.NewStyle().Height(avail).Render(body)

	return strings.Join([]string{body, status, inputView}, "\n")
}

func (c *ChatScreen) transcript(width int) string {
	if len(c.entries) == 0 {
		return theme.Hint.Render(mcqchat.WelcomeText)
	}
	parts := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		if e.user {
			parts = append(parts, theme.UserMessage.Width(width).Render("You: "+e.text))
			continue
		}
		parts = append(parts, theme.BotMessage.Width(width).Render(e.text))
	}
	return strings.Join(parts, "\n\n")
}
