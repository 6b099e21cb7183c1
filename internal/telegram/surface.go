package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/medprep/mcqgen/internal/chat"
)

// PageLimit is the maximum characters per Telegram message. The API cap
// is 4096; the rest is headroom for multi-unit characters.
const PageLimit = 4000

type page struct {
	id   int
	text string
}

// chatSurface maps one logical message onto as many Telegram messages as
// its text needs.
type chatSurface struct {
	api    API
	chatID int64

	mu       sync.Mutex
	next     chat.Handle
	messages map[chat.Handle][]page
}

func newChatSurface(api API, chatID int64) *chatSurface {
	return &chatSurface{api: api, chatID: chatID, messages: map[chat.Handle][]page{}}
}

func (s *chatSurface) Send(ctx context.Context, text string) (chat.Handle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pages []page
	for _, p := range paginate(text, PageLimit) {
		id, err := s.send(p)
		if err != nil {
			return 0, err
		}
		pages = append(pages, page{id: id, text: p})
	}
	h := s.next
	s.next++
	s.messages[h] = pages
	return h, nil
}

func (s *chatSurface) Update(ctx context.Context, h chat.Handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.messages[h]
	if !ok {
		return fmt.Errorf("unknown message handle %d", h)
	}

	parts := paginate(text, PageLimit)
	pages := make([]page, 0, len(parts))
	for i, p := range parts {
		if i < len(old) {
			if old[i].text != p {
				edit := tgbotapi.NewEditMessageText(s.chatID, old[i].id, p)
				if _, err := s.api.Request(edit); err != nil {
					return fmt.Errorf("edit message %d: %w", old[i].id, err)
				}
			}
			pages = append(pages, page{id: old[i].id, text: p})
			continue
		}
		id, err := s.send(p)
		if err != nil {
			return err
		}
		pages = append(pages, page{id: id, text: p})
	}
	for _, stale := range old[min(len(parts), len(old)):] {
		if _, err := s.api.Request(tgbotapi.NewDeleteMessage(s.chatID, stale.id)); err != nil {
			return fmt.Errorf("delete message %d: %w", stale.id, err)
		}
	}
	s.messages[h] = pages
	return nil
}

func (s *chatSurface) send(text string) (int, error) {
	m, err := s.api.Send(tgbotapi.NewMessage(s.chatID, text))
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return m.MessageID, nil
}

// paginate cuts text into pieces of at most limit runes, breaking after a
// newline in the second half of a window when there is one. A
// whitespace-only tail is dropped; empty text yields a placeholder page.
func paginate(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{"…"}
	}
	var pages []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		cut := limit
		if nl := strings.LastIndex(string(runes[:limit]), "\n"); nl >= 0 {
			if n := utf8.RuneCountInString(text[:nl]) + 1; n > limit/2 {
				cut = n
			}
		}
		pages = append(pages, string(runes[:cut]))
		text = string(runes[cut:])
	}
	if strings.TrimSpace(text) != "" {
		pages = append(pages, text)
	}
	return pages
}
