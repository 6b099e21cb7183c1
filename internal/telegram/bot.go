// Package telegram exposes the MCQ generator as a Telegram bot using long
// polling. Each chat gets its own session.
package telegram

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/medprep/mcqgen/internal/chat"
	"github.com/medprep/mcqgen/internal/intent"
	"github.com/medprep/mcqgen/internal/logger"
)

// API is the part of *tgbotapi.BotAPI the bot needs.
type API interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Options configures the bot.
type Options struct {
	MaxQuestions int
	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int
}

// Bot routes Telegram updates to per-chat sessions.
type Bot struct {
	api  API
	orch *chat.Orchestrator
	opts Options
	log  *logger.Logger

	mu       sync.Mutex
	sessions map[int64]*chat.Session
}

// New creates a Bot.
func New(api API, orch *chat.Orchestrator, opts Options, log *logger.Logger) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{api: api, orch: orch, opts: opts, log: log, sessions: map[int64]*chat.Session{}}
}

// Connect authenticates token against the Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is not set")
	}
	return tgbotapi.NewBotAPI(token)
}

const (
	pollBaseDelay = time.Second
	pollMaxDelay  = 15 * time.Second
)

// Run polls for updates until ctx is cancelled. Transient errors are
// retried with a delay.
func (b *Bot) Run(ctx context.Context) error {
	defer b.closeSessions()

	offset := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = b.opts.PollTimeout
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelay(err), pollBaseDelay), pollMaxDelay)
			b.log.Warn("telegram polling error", "error", err, "retry_in", d.String())
			if !sleep(ctx, d) {
				return nil
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.Handle(ctx, upd)
		}
		if len(updates) == 0 && !sleep(ctx, 200*time.Millisecond) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var retryAfterRe = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// retryDelay picks a polling backoff from the error text.
func retryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := retryAfterRe.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

// Handle processes one update. Generation runs in the background on the
// chat's session.
func (b *Bot) Handle(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID
	sess := b.session(cid)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.reply(cid, chat.WelcomeText)
		case "help":
			b.reply(cid, intent.UsageText)
		case "stop":
			sess.Cancel()
		case "blueprint":
			b.submit(ctx, sess, cid, "blueprint")
		default:
			b.reply(cid, intent.UsageText)
		}
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	b.submit(ctx, sess, cid, msg.Text)
}

func (b *Bot) submit(ctx context.Context, sess *chat.Session, cid int64, text string) {
	if err := sess.Submit(ctx, text); err != nil {
		b.log.Warn("telegram submit failed", "chat_id", cid, "error", err)
	}
}

func (b *Bot) reply(cid int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(cid, text)); err != nil {
		b.log.Warn("telegram reply failed", "chat_id", cid, "error", err)
	}
}

func (b *Bot) session(cid int64) *chat.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[cid]; ok {
		return s
	}
	s := chat.NewSession(b.orch, newChatSurface(b.api, cid), chat.SessionOptions{
		Surface:      "telegram",
		MaxQuestions: b.opts.MaxQuestions,
		Log:          b.log.With("chat_id", cid),
	})
	b.sessions[cid] = s
	return s
}

func (b *Bot) closeSessions() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = map[int64]*chat.Session{}
	b.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
