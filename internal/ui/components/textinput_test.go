package components

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func TestPromptInputTakeAndHistory(t *testing.T) {
	p := NewPromptInput("ask", 100)
	assert.Equal(t, "", p.Take())

	p.Model.SetValue("  generate 5 mcqs on gout ")
	assert.Equal(t, "generate 5 mcqs on gout", p.Take())
	assert.Equal(t, "", p.Model.Value())

	p.Model.SetValue("blueprint")
	assert.Equal(t, "blueprint", p.Take())
	assert.Equal(t, []string{"generate 5 mcqs on gout", "blueprint"}, p.history)
	assert.Equal(t, 2, p.cursor)

	p, _ = p.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	assert.Equal(t, "blueprint", p.Model.Value())
	p, _ = p.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	assert.Equal(t, "generate 5 mcqs on gout", p.Model.Value())
	p, _ = p.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	p, _ = p.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	assert.Equal(t, "", p.Model.Value())
}
