// Package history lists past generation runs.
package history

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/medprep/mcqgen/internal/router"
	"github.com/medprep/mcqgen/internal/screen"
	"github.com/medprep/mcqgen/internal/store"
	"github.com/medprep/mcqgen/internal/ui/layout"
	"github.com/medprep/mcqgen/internal/ui/theme"
)

const pageSize = 100

type historyLoadedMsg struct {
	Runs []store.GenerationRun
	Err  error
}

// HistoryScreen displays recent generation runs, newest first.
type HistoryScreen struct {
	runs     store.RunRepo
	items    []store.GenerationRun
	selected int
	expanded map[int]bool
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a HistoryScreen reading from runs.
func New(runs store.RunRepo) *HistoryScreen {
	return &HistoryScreen{runs: runs, expanded: make(map[int]bool)}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return func() tea.Msg {
		items, err := s.runs.List(context.Background(), store.QueryOpts{Limit: pageSize})
		return historyLoadedMsg{Runs: items, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.items = msg.Runs
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.items)-1 {
				s.selected++
			}
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	centered := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)
	switch {
	case s.errMsg != "":
		return centered.Foreground(theme.Error).Render("\n\nError: " + s.errMsg)
	case !s.loaded:
		return centered.Foreground(theme.TextDim).Render("\n\n  Loading history...")
	case len(s.items) == 0:
		return centered.Foreground(theme.TextDim).Italic(true).Render("\n\n  No generations yet. Ask for some MCQs!")
	}

	var lines []string
	for i, r := range s.items {
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(statusColor(r.Status))
		if i == s.selected {
			prefix = "> "
			style = style.Bold(true)
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s%s  %-10s %3d MCQs  %s",
			prefix, r.Timestamp.Local().Format("Jan 02 15:04"), r.Status, r.Requested, r.Topic)))

		if s.expanded[i] {
			for _, d := range details(r) {
				lines = append(lines, theme.Hint.Render("      "+d))
			}
		}
	}

	sel := s.selected
	for j := 0; j < sel && j < len(s.items); j++ {
		if s.expanded[j] {
			sel += len(details(s.items[j]))
		}
	}
	start := max(sel-height+2, 0)
	end := min(start+height, len(lines))
	return "\n" + strings.Join(lines[start:end], "\n")
}

func details(r store.GenerationRun) []string {
	out := []string{
		fmt.Sprintf("blocks %d, vignettes %d → %d, %d chars, %.1fs",
			r.Blocks, r.VignettesBefore, r.VignettesAfter, r.OutputChars, float64(r.LatencyMs)/1000),
		fmt.Sprintf("surface %s, session %s", orDash(r.Surface), orDash(r.SessionID)),
	}
	if r.Category != "" {
		out = append(out, "blueprint category "+r.Category)
	}
	if r.ErrorMessage != "" {
		out = append(out, "error: "+r.ErrorMessage)
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func statusColor(status string) color.Color {
	switch status {
	case store.RunCompleted:
		return theme.Success
	case store.RunFailed:
		return theme.Error
	case store.RunCancelled:
		return theme.Accent
	default:
		return theme.Text
	}
}
