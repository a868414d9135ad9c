package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/lawyrs-chat/internal/app/chat"
	"github.com/PabloGalante/lawyrs-chat/internal/app/dashboard"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
)

type event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type bannerEvent struct {
	Trace  []string          `json:"trace,omitempty"`
	Banner *dashboard.Banner `json:"banner,omitempty"`
}

type subscriber struct {
	ch chan event
}

// hub fans controller events out to every socket watching a chat. It is
// the chat.View of one controller. With no sockets the events are dropped.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{ch: make(chan event, subscriberBuffer)}
	h.subs[s] = struct{}{}
	return s, true
}

func (h *hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// publish never blocks: a subscriber whose buffer is full misses the event.
func (h *hub) publish(e event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		h.offer(s, e)
	}
}

// sendTo delivers e to one subscriber only.
func (h *hub) sendTo(s *subscriber, e event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		h.offer(s, e)
	}
}

// offer must be called with h.mu held.
func (h *hub) offer(s *subscriber, e event) {
	select {
	case s.ch <- e:
	default:
		observability.Logger().Warn("dropping chat event for slow subscriber", "type", e.Type)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
	}
}

func (h *hub) TranscriptReset(id domain.SessionID) {
	h.publish(event{Type: "transcript_reset", Data: map[string]string{"session_id": string(id)}})
}

func (h *hub) MessageAppended(b chat.Bubble) {
	h.publish(event{Type: "message", Data: b})
}

func (h *hub) PendingChanged(pending bool) {
	h.publish(event{Type: "pending", Data: pending})
}

func (h *hub) StatusChanged(status string) {
	h.publish(event{Type: "status", Data: status})
}

func (h *hub) SendEnabled(enabled bool) {
	h.publish(event{Type: "send_enabled", Data: enabled})
}

func (h *hub) Notify(n chat.Notification) {
	h.publish(event{Type: "notification", Data: n})
}

func (h *hub) SyncBanner(trace []string, b *dashboard.Banner) {
	h.publish(event{Type: "sync_banner", Data: bannerEvent{Trace: trace, Banner: b}})
}

// ─────────────────────────────────────────────
// Websocket endpoint
// ─────────────────────────────────────────────

// incoming is what a socket client may send.
type incoming struct {
	Type    string `json:"type"` // send | clear
	Text    string `json:"text,omitempty"`
	Confirm bool   `json:"confirm,omitempty"`

	AgentType string `json:"agent_type,omitempty"`
	FullCrew  bool   `json:"full_crew,omitempty"`
}

type eventHandler struct {
	server         *Server
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
}

func newEventHandler(s *Server, allowedOrigins []string) *eventHandler {
	h := &eventHandler{server: s, allowedOrigins: make(map[string]bool)}
	for _, o := range allowedOrigins {
		if o != "*" {
			h.allowedOrigins[o] = true
		}
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *eventHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return h.allowedOrigins[origin]
}

func (h *eventHandler) serve(w http.ResponseWriter, r *http.Request, chatID string, c *chat.Controller) {
	log := observability.LoggerFromContext(r.Context()).With("chat_id", chatID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	hb := h.server.hubFor(chatID)
	sub, ok := hb.subscribe()
	if !ok {
		_ = conn.WriteJSON(event{Type: "error", Data: "chat closed"})
		return
	}

	hb.sendTo(sub, event{Type: "connected", Data: map[string]string{
		"chat_id":    chatID,
		"session_id": string(c.SessionID()),
	}})

	// Only this goroutine writes to the socket.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for e := range sub.ch {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Warn("websocket write failed", "error", err)
				_ = conn.Close()
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	}()

	// Turns outlive the socket: a reply that lands after the client left is
	// still recorded in the transcript.
	turnCtx := context.WithoutCancel(r.Context())
	var turns sync.WaitGroup

	for {
		var in incoming
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket closed unexpectedly", "error", err)
			}
			break
		}

		switch in.Type {
		case "send", "":
			if c.Busy() {
				hb.sendTo(sub, event{Type: "error", Data: "a message is already being sent"})
				continue
			}
			turns.Add(1)
			go func(text string, opts chat.SubmitOptions) {
				defer turns.Done()
				if err := c.SubmitWith(turnCtx, text, opts); err != nil && !errors.Is(err, chat.ErrEmptyInput) {
					hb.sendTo(sub, event{Type: "error", Data: err.Error()})
				}
			}(in.Text, submitOptions(in.AgentType, in.FullCrew))
		case "clear":
			if _, err := c.Clear(turnCtx, in.Confirm); err != nil {
				hb.sendTo(sub, event{Type: "error", Data: err.Error()})
			}
		default:
			hb.sendTo(sub, event{Type: "error", Data: "unknown message type"})
		}
	}

	hb.unsubscribe(sub)
	<-writerDone
	turns.Wait()
}
