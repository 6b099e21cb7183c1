package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTail(t *testing.T) {
	text := "1\n2\n3\n4\n5"

	got, off := Tail(text, 2, 0)
	assert.Equal(t, "4\n5", got)
	assert.Equal(t, 0, off)

	got, off = Tail(text, 2, 1)
	assert.Equal(t, "3\n4", got)
	assert.Equal(t, 1, off)

	got, off = Tail(text, 2, 99)
	assert.Equal(t, "1\n2", got)
	assert.Equal(t, 3, off)

	got, off = Tail(text, 10, 4)
	assert.Equal(t, text, got)
	assert.Equal(t, 0, off)

	got, _ = Tail(text, 0, 0)
	assert.Equal(t, "", got)
}

func TestIsTooSmall(t *testing.T) {
	assert.True(t, IsTooSmall(MinWidth-1, MinHeight))
	assert.True(t, IsTooSmall(MinWidth, MinHeight-1))
	assert.False(t, IsTooSmall(MinWidth, MinHeight))
}

func TestRenderHeaderShowsStatus(t *testing.T) {
	h := RenderHeader("Chat", "gpt-4o", 80)
	assert.Contains(t, h, "MCQ Generator")
	assert.Contains(t, h, "Chat")
	assert.Contains(t, h, "gpt-4o")
}

func TestRenderFrameHeight(t *testing.T) {
	frame := RenderFrame("h", "body", "f", 20, 10)
	assert.Equal(t, 10, strings.Count(frame, "\n")+1)
}
