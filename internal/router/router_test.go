package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/medprep/mcqgen/internal/screen"
)

type stubScreen struct {
	title   string
	initRan bool
	seen    []tea.Msg
}

func (s *stubScreen) Init() tea.Cmd {
	s.initRan = true
	return nil
}

func (s *stubScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	s.seen = append(s.seen, msg)
	return s, nil
}

func (s *stubScreen) View(int, int) string { return s.title }
func (s *stubScreen) Title() string        { return s.title }

type fooMsg struct{}

func TestPushAndPop(t *testing.T) {
	chat := &stubScreen{title: "chat"}
	r := New(chat)

	history := &stubScreen{title: "history"}
	r.Update(PushScreenMsg{Screen: history})
	if r.Depth() != 2 || r.Active() != history {
		t.Fatalf("expected history on top, depth %d", r.Depth())
	}
	if !history.initRan {
		t.Error("expected Init() to run on pushed screen")
	}

	r.Update(PopScreenMsg{})
	if r.Depth() != 1 || r.Active() != chat {
		t.Fatalf("expected chat on top after pop, depth %d", r.Depth())
	}

	r.Update(PopScreenMsg{})
	if r.Depth() != 1 {
		t.Errorf("expected depth 1 after pop at bottom, got %d", r.Depth())
	}
}

func TestReplaceKeepsDepth(t *testing.T) {
	welcome := &stubScreen{title: "welcome"}
	r := New(welcome)

	chat := &stubScreen{title: "chat"}
	r.Update(ReplaceScreenMsg{Screen: chat})
	if r.Depth() != 1 {
		t.Errorf("expected depth 1 after replace, got %d", r.Depth())
	}
	if r.Active().Title() != "chat" {
		t.Errorf("expected active 'chat', got %q", r.Active().Title())
	}
	if !chat.initRan {
		t.Error("expected Init() to run on replacement")
	}

	r.Push(&stubScreen{title: "history"})
	r.Replace(&stubScreen{title: "detail"})
	if r.Depth() != 2 || r.Active().Title() != "detail" {
		t.Errorf("expected detail at depth 2, got %q at %d", r.Active().Title(), r.Depth())
	}
}

func TestUpdateForwardsToActive(t *testing.T) {
	bottom := &stubScreen{title: "bottom"}
	top := &stubScreen{title: "top"}
	r := New(bottom)
	r.Push(top)

	r.Update(fooMsg{})
	if len(top.seen) != 1 || len(bottom.seen) != 0 {
		t.Errorf("expected message delivered to top only, got top=%d bottom=%d", len(top.seen), len(bottom.seen))
	}
	if got := r.View(10, 10); got != "top" {
		t.Errorf("expected view of top screen, got %q", got)
	}
}
