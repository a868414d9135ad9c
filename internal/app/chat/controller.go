package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/lawyrs-chat/internal/app/dashboard"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrSendInFlight      = errors.New("a message is already being sent")
	ErrClearNotConfirmed = errors.New("clear requires confirmation")
	ErrClosed            = errors.New("chat controller closed")
)

// State is the controller's position in the send cycle.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingHistory State = "awaiting_history"
	StateSending        State = "sending"
)

// AppContext carries what used to be page-level globals: collaborators and
// the defaults every controller starts from.
type AppContext struct {
	Backend             domain.AgentBackend
	Reconciler          *dashboard.Reconciler
	DefaultJurisdiction domain.Jurisdiction
	StatusInterval      time.Duration
	Statuses            []string

	Now          func() time.Time
	NewSessionID func() domain.SessionID
}

func (a *AppContext) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *AppContext) newSessionID() domain.SessionID {
	if a.NewSessionID != nil {
		return a.NewSessionID()
	}
	return NewSessionID()
}

// NewSessionID returns a time-ordered UUIDv7.
func NewSessionID() domain.SessionID {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.SessionID(uuid.NewString())
	}
	return domain.SessionID(id.String())
}

// Controller drives one chat session. At most one send is in flight; a
// second submit is rejected, not queued.
type Controller struct {
	app  *AppContext
	view viewSlot

	mu           sync.Mutex
	id           domain.SessionID
	jurisdiction domain.Jurisdiction
	matter       *domain.Matter
	page         dashboard.Page
	messages     []*domain.Message
	state        State
	closed       bool
	ticker       *statusTicker
}

func NewController(app *AppContext) *Controller {
	j := app.DefaultJurisdiction
	if j == "" {
		j = domain.JurisdictionMissouri
	}
	return &Controller{
		app:          app,
		id:           app.newSessionID(),
		jurisdiction: j,
		page:         dashboard.PageChat,
		state:        StateIdle,
	}
}

// Attach routes events to v, replacing any previous view.
func (c *Controller) Attach(v View) { c.view.set(v) }

// Detach stops rendering. Requests in flight still complete and land in
// the transcript.
func (c *Controller) Detach() { c.view.set(nil) }

func (c *Controller) SessionID() domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether the send control is disabled.
func (c *Controller) Busy() bool {
	return c.State() == StateSending
}

func (c *Controller) Jurisdiction() domain.Jurisdiction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jurisdiction
}

func (c *Controller) SetJurisdiction(j domain.Jurisdiction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jurisdiction = j
}

// SetMatter binds the session to a matter; nil unbinds it.
func (c *Controller) SetMatter(m *domain.Matter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matter = m
}

// SetPage records which page the user is looking at, for refresh decisions.
func (c *Controller) SetPage(p dashboard.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = p
}

// Transcript returns a copy of the local transcript.
func (c *Controller) Transcript() []*domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Open loads prior messages and primes the dashboard cache concurrently.
// Neither failure is an error: history falls back to empty.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.state = StateAwaitingHistory
	id := c.id
	c.mu.Unlock()

	ctx = observability.WithSessionID(ctx, string(id))
	log := observability.LoggerFromContext(ctx)

	var history []*domain.Message
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := c.app.Backend.FetchHistory(gctx, id)
		if err != nil {
			log.Warn("history fetch failed, starting empty", "error", err)
			return nil
		}
		history = msgs
		return nil
	})
	if c.app.Reconciler != nil {
		g.Go(func() error {
			if _, err := c.app.Reconciler.Cache().PrimeIfNeeded(gctx); err != nil {
				log.Warn("dashboard prime failed", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	if c.id != id {
		return nil
	}
	for _, m := range history {
		if m == nil {
			continue
		}
		c.messages = append(c.messages, m)
		c.emit(func(v View) { v.MessageAppended(Present(m)) })
	}
	log.Info("chat opened", "history_count", len(history))
	return nil
}

// SubmitOptions steer how the backend answers one turn.
type SubmitOptions struct {
	// Agent skips intent classification. Unknown agents are ignored.
	Agent domain.AgentType
	// FullCrew runs every specialist in sequence.
	FullCrew bool
}

// Submit sends text as a user turn and blocks until the turn resolves.
// Empty input is ignored before any request is made.
func (c *Controller) Submit(ctx context.Context, text string) error {
	return c.SubmitWith(ctx, text, SubmitOptions{})
}

// SubmitWith is Submit with explicit routing options.
func (c *Controller) SubmitWith(ctx context.Context, text string, opts SubmitOptions) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.state = StateSending

	userMsg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: c.id,
		Author:    domain.RoleUser,
		Text:      text,
		CreatedAt: c.app.now(),
	}
	c.messages = append(c.messages, userMsg)

	req := domain.TurnRequest{
		SessionID:    c.id,
		Query:        text,
		Jurisdiction: c.jurisdiction,
		Matter:       c.matter,
		FullCrew:     opts.FullCrew,
	}
	if opts.Agent.Known() {
		req.ForceAgent = opts.Agent
	}
	page := c.page

	c.emit(func(v View) {
		v.MessageAppended(Present(userMsg))
		v.SendEnabled(false)
		v.PendingChanged(true)
	})
	c.ticker = startStatusTicker(c.app.StatusInterval, c.statuses(), func(s string) {
		c.view.with(func(v View) { v.StatusChanged(s) })
	})
	c.mu.Unlock()

	ctx = observability.WithSessionID(ctx, string(req.SessionID))
	log := observability.LoggerFromContext(ctx)
	log.Info("sending turn", "jurisdiction", req.Jurisdiction, "query_len", len(text),
		"agent", req.ForceAgent, "full_crew", req.FullCrew)

	if c.app.Reconciler != nil {
		req.Dashboard = c.app.Reconciler.Cache().Snapshot(ctx)
	}

	reply, err := c.app.Backend.SendTurn(ctx, req)
	if err == nil && reply == nil {
		err = errors.New("empty reply from backend")
	}
	if err != nil {
		log.Warn("turn failed", "error", err)
		c.fail(err)
		return nil
	}

	c.receive(reply)

	var res dashboard.Result
	if reply.Dashboard != nil && c.app.Reconciler != nil {
		res = c.app.Reconciler.Reconcile(ctx, reply.Dashboard, page)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	if res.Notification != "" || len(res.Trace) > 0 {
		c.emit(func(v View) {
			v.SyncBanner(res.Trace, res.Banner)
			if res.Notification != "" {
				v.Notify(Notification{Level: LevelInfo, Text: res.Notification})
			}
		})
	}
	c.emit(func(v View) { v.SendEnabled(true) })
	log.Info("turn completed", "agent", reply.Envelope.Agent)
	return nil
}

func (c *Controller) receive(reply *domain.TurnReply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticker.Stop()
	c.ticker = nil

	env := reply.Envelope
	if env.Confidence != nil {
		v := domain.ClampConfidence(*env.Confidence)
		env.Confidence = &v
	}
	agentMsg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: c.id,
		Author:    domain.RoleAgent,
		Text:      reply.Text,
		CreatedAt: c.app.now(),
		Agent:     &env,
	}
	c.messages = append(c.messages, agentMsg)

	c.emit(func(v View) {
		v.PendingChanged(false)
		v.MessageAppended(Present(agentMsg))
		v.Notify(Notification{Level: LevelSuccess, Text: summaryLine(env)})
	})
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticker.Stop()
	c.ticker = nil
	c.state = StateIdle

	notice := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: c.id,
		Author:    domain.RoleAgent,
		Text:      fmt.Sprintf("Sorry, your message could not be processed (%v). You can send it again.", err),
		CreatedAt: c.app.now(),
		IsError:   true,
	}
	c.messages = append(c.messages, notice)

	c.emit(func(v View) {
		v.PendingChanged(false)
		v.MessageAppended(Present(notice))
		v.Notify(Notification{Level: LevelError, Text: "The assistant could not be reached. Please try again."})
		v.SendEnabled(true)
	})
}

// Clear starts a new session. The backend is asked to drop the old one but
// a failure there is only logged. The dashboard cache is not touched.
func (c *Controller) Clear(ctx context.Context, confirmed bool) (domain.SessionID, error) {
	if !confirmed {
		return "", ErrClearNotConfirmed
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return "", ErrSendInFlight
	}
	oldID := c.id
	c.id = c.app.newSessionID()
	c.messages = nil
	newID := c.id
	c.emit(func(v View) { v.TranscriptReset(newID) })
	c.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With("old_session_id", oldID, "session_id", newID)
	if err := c.app.Backend.ClearSession(ctx, oldID); err != nil {
		log.Warn("clearing old session failed", "error", err)
	}
	log.Info("chat cleared")
	return newID, nil
}

// Close tears the controller down. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.ticker.Stop()
	c.ticker = nil
	c.view.set(nil)
}

// emit must be called with c.mu held.
func (c *Controller) emit(fn func(View)) {
	if c.closed {
		return
	}
	c.view.with(fn)
}

func (c *Controller) statuses() []string {
	if len(c.app.Statuses) > 0 {
		return c.app.Statuses
	}
	return DefaultStatuses
}
