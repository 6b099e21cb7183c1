// Package chat runs generation turns for a conversation: it parses user
// input, drives the retrieval, prompt, stream and rebalance pipeline and
// delivers progress to a Surface.
package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Handle identifies a message previously sent through a Surface.
type Handle int

// Surface is where a conversation's messages are shown. Update replaces
// the whole content of an earlier message.
type Surface interface {
	Send(ctx context.Context, text string) (Handle, error)
	Update(ctx context.Context, h Handle, text string) error
}

// Retriever supplies reference text for a topic. An empty string means
// nothing relevant was found.
type Retriever interface {
	Search(ctx context.Context, query string) (string, error)
}

type surfaceKey struct{}

// WithSurface labels ctx with the surface name recorded on generation runs.
func WithSurface(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, surfaceKey{}, name)
}

func surfaceFrom(ctx context.Context) string {
	v, _ := ctx.Value(surfaceKey{}).(string)
	return v
}

// ConsoleSurface keeps messages in memory and writes them out on Flush.
type ConsoleSurface struct {
	mu   sync.Mutex
	w    io.Writer
	msgs []string
}

// NewConsoleSurface returns a ConsoleSurface writing to w.
func NewConsoleSurface(w io.Writer) *ConsoleSurface {
	return &ConsoleSurface{w: w}
}

func (c *ConsoleSurface) Send(_ context.Context, text string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return Handle(len(c.msgs) - 1), nil
}

func (c *ConsoleSurface) Update(_ context.Context, h Handle, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(h) < 0 || int(h) >= len(c.msgs) {
		return fmt.Errorf("unknown message handle %d", h)
	}
	c.msgs[h] = text
	return nil
}

// Messages returns a copy of the current message contents.
func (c *ConsoleSurface) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

// Flush writes all buffered messages separated by blank lines and clears
// the buffer.
func (c *ConsoleSurface) Flush() error {
	c.mu.Lock()
	msgs := c.msgs
	c.msgs = nil
	c.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}
	out := strings.Join(msgs, "\n\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := io.WriteString(c.w, out)
	return err
}
