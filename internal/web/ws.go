package web

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medprep/mcqgen/internal/chat"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	ID      *int   `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.opts.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(s.opts.AllowedOrigins, origin)
		},
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	surface := &wsSurface{ctx: ctx, out: make(chan outbound, 64)}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		writeLoop(ctx, conn, surface.out)
	}()

	sess := chat.NewSession(s.orch, surface, chat.SessionOptions{
		Surface:      "web",
		MaxQuestions: s.opts.MaxQuestions,
		Log:          s.log,
	})
	log := s.log.With("session", sess.ID)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	defer func() {
		cancel()
		sess.Close()
		<-writerDone
		log.Info("websocket closed")
	}()

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read ended", "error", err)
			}
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "message":
			if err := sess.Submit(ctx, in.Content); err != nil {
				log.Warn("submit failed", "error", err)
			}
		case "stop":
			sess.Cancel()
		case "ping":
			surface.push(outbound{Type: "pong"})
		default:
			surface.push(outbound{Type: "error", Message: "unknown message type " + strconv.Quote(in.Type)})
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan outbound) {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case msg := <-out:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsSurface turns Send and Update into outbound frames.
type wsSurface struct {
	ctx context.Context
	out chan outbound

	mu   sync.Mutex
	next int
}

func (w *wsSurface) push(msg outbound) error {
	select {
	case w.out <- msg:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

func (w *wsSurface) Send(ctx context.Context, text string) (chat.Handle, error) {
	w.mu.Lock()
	id := w.next
	w.next++
	w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return chat.Handle(id), w.push(outbound{Type: "send", ID: &id, Content: text})
}

func (w *wsSurface) Update(ctx context.Context, h chat.Handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := int(h)
	return w.push(outbound{Type: "update", ID: &id, Content: text})
}
