package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/PabloGalante/lawyrs-chat/internal/app/agentflow"
	"github.com/PabloGalante/lawyrs-chat/internal/app/chat"
	"github.com/PabloGalante/lawyrs-chat/internal/app/dashboard"
	"github.com/PabloGalante/lawyrs-chat/internal/app/memories"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Chats          *chat.Registry
	Memories       *memories.Service
	AllowedOrigins []string
}

type Server struct {
	chats    *chat.Registry
	memories *memories.Service
	events   *eventHandler

	mu   sync.Mutex
	hubs map[string]*hub
}

func NewServer(d Deps) http.Handler {
	s := &Server{
		chats:    d.Chats,
		memories: d.Memories,
		hubs:     make(map[string]*hub),
	}
	s.events = newEventHandler(s, d.AllowedOrigins)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /chats → create chat (POST)
	mux.HandleFunc("/chats", s.handleChats)

	// /chats/{id}          → GET state, PATCH context, DELETE close
	// /chats/{id}/messages → POST send, DELETE clear (confirm=true)
	// /chats/{id}/events   → websocket
	mux.HandleFunc("/chats/", s.handleChatWithID)

	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/dashboard/refresh", s.handleDashboardRefresh)

	mux.HandleFunc("/memories", s.handleMemories)
	mux.HandleFunc("/memories/", s.handleMemoryWithID)

	mux.HandleFunc("/citations/links", s.handleCitationLinks)
	mux.HandleFunc("/citations/verify", s.handleCitationVerify)

	mux.HandleFunc("/classify", s.handleClassify)

	return chainMiddlewares(mux,
		withCORS(d.AllowedOrigins),
		withLogging,
		withRequestID,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type matterRequest struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type chatContextRequest struct {
	Jurisdiction string         `json:"jurisdiction,omitempty"`
	Matter       *matterRequest `json:"matter,omitempty"`
	// ClearMatter unbinds the matter; a missing matter leaves it as is.
	ClearMatter bool   `json:"clear_matter,omitempty"`
	Page        string `json:"page,omitempty"`
}

type chatResponse struct {
	ChatID       string                  `json:"chat_id"`
	SessionID    string                  `json:"session_id"`
	State        string                  `json:"state"`
	Jurisdiction string                  `json:"jurisdiction"`
	Transcript   []chat.Bubble           `json:"transcript"`
	Dashboard    domain.DashboardSummary `json:"dashboard"`
}

type sendMessageRequest struct {
	Text      string `json:"text"`
	AgentType string `json:"agent_type,omitempty"`
	FullCrew  bool   `json:"full_crew,omitempty"`
	chatContextRequest
}

func (r sendMessageRequest) options() chat.SubmitOptions {
	return submitOptions(r.AgentType, r.FullCrew)
}

type classifyResponse struct {
	Message string `json:"message"`
	Agent   string `json:"agent"`
	Label   string `json:"label"`
}

type sendMessageResponse struct {
	SessionID string                  `json:"session_id"`
	Messages  []chat.Bubble           `json:"messages"`
	Dashboard domain.DashboardSummary `json:"dashboard"`
}

type clearResponse struct {
	SessionID string `json:"session_id"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /chats
func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateChat(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /chats/{id}, /chats/{id}/messages or /chats/{id}/events
func (s *Server) handleChatWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/chats/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	c, err := s.chats.Get(id)
	if err != nil {
		notFound(w, "chat not found")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetChat(w, r, id, c)
		case http.MethodPatch:
			s.handleUpdateChat(w, r, id, c)
		case http.MethodDelete:
			s.handleCloseChat(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "messages":
		switch r.Method {
		case http.MethodPost:
			s.handleSendMessage(w, r, c)
		case http.MethodDelete:
			s.handleClearChat(w, r, c)
		default:
			methodNotAllowed(w)
		}
	case "events":
		s.events.serve(w, r, id, c)
	default:
		http.NotFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req chatContextRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}

	id, c := s.chats.Create()
	c.Attach(s.hubFor(id))
	applyContext(c, req)

	if err := c.Open(r.Context()); err != nil {
		internalError(w, err)
		return
	}

	observability.LoggerFromContext(r.Context()).Info("chat created", "chat_id", id, "session_id", c.SessionID())
	writeJSON(w, http.StatusCreated, s.chatState(r, id, c))
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request, id string, c *chat.Controller) {
	writeJSON(w, http.StatusOK, s.chatState(r, id, c))
}

func (s *Server) handleUpdateChat(w http.ResponseWriter, r *http.Request, id string, c *chat.Controller) {
	var req chatContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	applyContext(c, req)
	writeJSON(w, http.StatusOK, s.chatState(r, id, c))
}

func (s *Server) handleCloseChat(w http.ResponseWriter, r *http.Request, id string) {
	s.chats.Remove(id)

	s.mu.Lock()
	h := s.hubs[id]
	delete(s.hubs, id)
	s.mu.Unlock()
	if h != nil {
		h.close()
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, c *chat.Controller) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	applyContext(c, req.chatContextRequest)

	before := len(c.Transcript())
	if err := c.SubmitWith(r.Context(), req.Text, req.options()); err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeChatError(w, err)
		return
	}

	transcript := c.Transcript()
	if before > len(transcript) {
		before = 0
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{
		SessionID: string(c.SessionID()),
		Messages:  toBubbles(transcript[before:]),
		Dashboard: s.snapshot(r),
	})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request, c *chat.Controller) {
	confirmed := r.URL.Query().Get("confirm") == "true"
	id, err := c.Clear(r.Context(), confirmed)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{SessionID: string(id)})
}

// GET /classify?message=
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	msg := r.URL.Query().Get("message")
	if strings.TrimSpace(msg) == "" {
		badRequest(w, "message is required")
		return
	}
	agent := agentflow.Classify(msg)
	writeJSON(w, http.StatusOK, classifyResponse{
		Message: msg,
		Agent:   string(agent),
		Label:   agent.Label(),
	})
}

// ─────────────────────────────────────────────
// Chat helpers
// ─────────────────────────────────────────────

// submitOptions maps wire fields onto turn options. Unknown agents fall
// back to classification.
func submitOptions(agent string, fullCrew bool) chat.SubmitOptions {
	return chat.SubmitOptions{
		Agent:    domain.ParseAgentType(agent),
		FullCrew: fullCrew,
	}
}

// hubFor returns the event hub of a chat, creating it on first use.
func (s *Server) hubFor(id string) *hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hubs[id]
	if !ok {
		h = newHub()
		s.hubs[id] = h
	}
	return h
}

func (s *Server) chatState(r *http.Request, id string, c *chat.Controller) chatResponse {
	return chatResponse{
		ChatID:       id,
		SessionID:    string(c.SessionID()),
		State:        string(c.State()),
		Jurisdiction: string(c.Jurisdiction()),
		Transcript:   toBubbles(c.Transcript()),
		Dashboard:    s.snapshot(r),
	}
}

func (s *Server) snapshot(r *http.Request) domain.DashboardSummary {
	rec := s.chats.App().Reconciler
	if rec == nil {
		return domain.DashboardSummary{}
	}
	return rec.Cache().Snapshot(r.Context())
}

func applyContext(c *chat.Controller, req chatContextRequest) {
	if req.Jurisdiction != "" {
		c.SetJurisdiction(domain.ParseJurisdiction(req.Jurisdiction, c.Jurisdiction()))
	}
	switch {
	case req.ClearMatter:
		c.SetMatter(nil)
	case req.Matter != nil && req.Matter.ID != "":
		c.SetMatter(&domain.Matter{ID: domain.MatterID(req.Matter.ID), Label: req.Matter.Label})
	}
	if req.Page != "" {
		c.SetPage(dashboard.Page(strings.ToLower(req.Page)))
	}
}

func toBubbles(msgs []*domain.Message) []chat.Bubble {
	out := make([]chat.Bubble, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chat.Present(m))
	}
	return out
}

func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		badRequest(w, "text is required")
	case errors.Is(err, chat.ErrClearNotConfirmed):
		badRequest(w, "clearing the chat requires confirm=true")
	case errors.Is(err, chat.ErrSendInFlight):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a message is already being sent"})
	case errors.Is(err, chat.ErrClosed):
		writeJSON(w, http.StatusGone, map[string]string{"error": "chat closed"})
	default:
		internalError(w, err)
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	observability.Logger().Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func badGateway(w http.ResponseWriter, err error) {
	observability.Logger().Warn("upstream failed", "error", err)
	writeJSON(w, http.StatusBadGateway, map[string]string{
		"error": "upstream unavailable",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
