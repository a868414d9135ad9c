package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/lawyrs-chat/internal/app/agentflow"
	"github.com/PabloGalante/lawyrs-chat/internal/app/tools"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
	"github.com/PabloGalante/lawyrs-chat/internal/render/citation"
)

const (
	historyLimit      = 20
	matterMemoryLimit = 5
	memoryListLimit   = 100
	defaultConfidence = 0.90
)

var ErrEmptyQuery = errors.New("empty query")

// Practice is the local practice database as seen by the agent backend:
// it answers dashboard refreshes and absorbs turn side effects.
type Practice interface {
	domain.SummarySource
	Apply(u domain.DashboardUpdate)
}

// modelNamer is implemented by LLM clients that know their model.
type modelNamer interface {
	ModelName() string
}

// Service is the in-process agent backend: it persists the conversation,
// runs the specialists and reports the side effects of every turn.
type Service struct {
	llm          domain.LLMClient
	sessionStore domain.SessionStore
	messageStore domain.MessageStore
	memoryStore  domain.MemoryStore
	practice     Practice
	now          func() time.Time

	memoryTool   tools.Tool
	orchestrator *agentflow.Orchestrator
}

var (
	_ domain.AgentBackend  = (*Service)(nil)
	_ domain.SummarySource = (*Service)(nil)
)

func NewService(
	llm domain.LLMClient,
	sessionStore domain.SessionStore,
	messageStore domain.MessageStore,
	memoryStore domain.MemoryStore,
	practice Practice,
) *Service {
	var memoryTool tools.Tool
	if memoryStore != nil {
		memoryTool = tools.NewMemoryTool(memoryStore)
	}

	return &Service{
		llm:          llm,
		sessionStore: sessionStore,
		messageStore: messageStore,
		memoryStore:  memoryStore,
		practice:     practice,
		now:          time.Now,
		memoryTool:   memoryTool,
		orchestrator: agentflow.NewDefaultOrchestrator(llm),
	}
}

func (s *Service) SendTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnReply, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if req.SessionID == "" {
		req.SessionID = domain.SessionID(uuid.NewString())
	}
	start := s.now()

	log := observability.LoggerFromContext(ctx).With(
		"session_id", req.SessionID,
		"jurisdiction", req.Jurisdiction,
		"full_crew", req.FullCrew,
	)
	log.Info("agent turn received", "query_len", len(query))

	session, err := s.loadOrStartSession(ctx, req)
	if err != nil {
		log.Error("failed to load session", "error", err)
		return nil, err
	}

	userMsg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: session.ID,
		Author:    domain.RoleUser,
		Text:      query,
		CreatedAt: start,
	}
	if err := s.messageStore.AppendMessage(ctx, userMsg); err != nil {
		log.Error("failed to append user message", "error", err)
		return nil, err
	}

	history, err := s.messageStore.GetMessagesBySession(ctx, session.ID, historyLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}
	if n := len(history); n > 0 && history[n-1].ID == userMsg.ID {
		history = history[:n-1]
	}

	facts, memoryLoaded := s.matterFacts(ctx, session.Matter)
	in := agentflow.AgentInput{
		Query:       query,
		MatterFacts: facts,
		ConvCtx: domain.ConversationContext{
			SessionID:    session.ID,
			Jurisdiction: session.Jurisdiction,
			Matter:       session.Matter,
			History:      history,
		},
	}

	var res *agentflow.RunResult
	if req.FullCrew || req.ForceAgent == domain.AgentOrchestrator {
		res, err = s.orchestrator.RunCrew(ctx, in)
	} else {
		res, err = s.orchestrator.RunSingle(ctx, req.ForceAgent, in)
	}
	if err != nil {
		log.Error("orchestrator failed", "error", err)
		return nil, err
	}

	env := s.envelope(res, memoryLoaded, s.now().Sub(start))
	agentMsg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		SessionID: session.ID,
		Author:    domain.RoleAgent,
		Text:      res.Reply,
		CreatedAt: s.now(),
		Agent:     &env,
	}
	if err := s.messageStore.AppendMessage(ctx, agentMsg); err != nil {
		log.Error("failed to append agent message", "error", err)
		return nil, err
	}

	session.UpdatedAt = s.now()
	if err := s.sessionStore.UpdateSession(ctx, session); err != nil {
		log.Error("failed to update session", "error", err)
		return nil, err
	}

	if s.remember(ctx, session, res, query) {
		res.Steps = append(res.Steps, "Matter memory saved")
	}

	update := agentflow.DeriveUpdate(res, session.Matter)
	if s.practice != nil {
		s.practice.Apply(*update)
	}

	log.Info("agent turn completed",
		"agent", env.Agent,
		"agents", len(res.Agents),
		"new_tasks", update.NewTasks,
		"new_documents", update.NewDocuments,
	)

	return &domain.TurnReply{
		Text:         res.Reply,
		Jurisdiction: session.Jurisdiction,
		Envelope:     env,
		Dashboard:    update,
	}, nil
}

func (s *Service) envelope(res *agentflow.RunResult, memoryLoaded bool, elapsed time.Duration) domain.AgentEnvelope {
	confidence := defaultConfidence
	citations := agentflow.CountCitations(res.Reply)
	risks := agentflow.CountRisks(res.Reply)
	multi := len(res.Agents) > 1

	env := domain.AgentEnvelope{
		Agent:        res.Agent,
		Confidence:   &confidence,
		Citations:    &citations,
		RisksFlagged: &risks,
		MemoryLoaded: &memoryLoaded,
		MultiAgent:   &multi,
		Telemetry:    &domain.Telemetry{DurationMS: elapsed.Milliseconds()},
	}
	if multi {
		for _, a := range res.Agents {
			env.SubAgents = append(env.SubAgents, string(a))
		}
	}
	if mn, ok := s.llm.(modelNamer); ok {
		env.Telemetry.Model = mn.ModelName()
	}
	return env
}

// loadOrStartSession returns the stored session, creating it on first use.
// Jurisdiction and matter follow the latest request.
func (s *Service) loadOrStartSession(ctx context.Context, req domain.TurnRequest) (*domain.Session, error) {
	j := domain.ParseJurisdiction(string(req.Jurisdiction), domain.JurisdictionMissouri)

	session, err := s.sessionStore.GetSession(ctx, req.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		now := s.now()
		session = &domain.Session{
			ID:           req.SessionID,
			Jurisdiction: j,
			Matter:       req.Matter,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.sessionStore.CreateSession(ctx, session); err != nil {
			return nil, err
		}
		observability.LoggerFromContext(ctx).Info("session started", "session_id", session.ID)
		return session, nil
	case err != nil:
		return nil, err
	}

	session.Jurisdiction = j
	session.Matter = req.Matter
	return session, nil
}

// matterFacts loads the latest memories of the bound matter as context.
func (s *Service) matterFacts(ctx context.Context, matter *domain.Matter) (string, bool) {
	if matter == nil || matter.ID == "" || s.memoryStore == nil {
		return "", false
	}
	mems, err := s.memoryStore.ListMemories(ctx, domain.MemoryQuery{MatterID: matter.ID}, matterMemoryLimit)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to load matter memories", "matter_id", matter.ID, "error", err)
		return "", false
	}
	if len(mems) == 0 {
		return "", false
	}

	var b strings.Builder
	if matter.Label != "" {
		b.WriteString(matter.Label)
		b.WriteString("\n")
	}
	for _, m := range mems {
		fmt.Fprintf(&b, "- %s: %s\n", m.Key, m.Content)
	}
	return strings.TrimSpace(b.String()), true
}

// remember stores what the turn produced as a memory. Failures are logged
// and never fail the turn.
func (s *Service) remember(ctx context.Context, session *domain.Session, res *agentflow.RunResult, query string) bool {
	if s.memoryTool == nil {
		return false
	}
	tctx := tools.ToolContext{
		SessionID: string(session.ID),
		RequestID: observability.RequestIDFromContext(ctx),
	}
	if session.Matter != nil {
		tctx.MatterID = string(session.Matter.ID)
	}

	key := query
	if r := []rune(key); len(r) > 80 {
		key = string(r[:80]) + "…"
	}
	_, err := s.memoryTool.Call(ctx, tctx, map[string]any{
		"agent_type": string(res.Agent),
		"key":        key,
		"content":    res.Reply,
	})
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to save memory", "tool", s.memoryTool.Name(), "error", err)
		return false
	}
	return true
}

// FetchHistory returns the stored transcript. An unknown session has an
// empty history.
func (s *Service) FetchHistory(ctx context.Context, id domain.SessionID) ([]*domain.Message, error) {
	if _, err := s.sessionStore.GetSession(ctx, id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return []*domain.Message{}, nil
		}
		return nil, err
	}
	msgs, err := s.messageStore.GetMessagesBySession(ctx, id, 0)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to get messages", "session_id", id, "error", err)
		return nil, err
	}
	return msgs, nil
}

// ClearSession drops the session and its messages. Memories survive.
func (s *Service) ClearSession(ctx context.Context, id domain.SessionID) error {
	if err := s.messageStore.DeleteMessagesBySession(ctx, id); err != nil {
		return err
	}
	if err := s.sessionStore.DeleteSession(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	observability.LoggerFromContext(ctx).Info("session cleared", "session_id", id)
	return nil
}

func (s *Service) ListMemories(ctx context.Context) ([]*domain.Memory, error) {
	return s.SearchMemories(ctx, domain.MemoryQuery{})
}

func (s *Service) SearchMemories(ctx context.Context, q domain.MemoryQuery) ([]*domain.Memory, error) {
	if s.memoryStore == nil {
		return []*domain.Memory{}, nil
	}
	return s.memoryStore.ListMemories(ctx, q, memoryListLimit)
}

func (s *Service) DeleteMemory(ctx context.Context, id domain.MemoryID) error {
	if s.memoryStore == nil {
		return domain.ErrMemoryNotFound
	}
	return s.memoryStore.DeleteMemory(ctx, id)
}

// VerifyCitation has no research database behind it: a citation counts as
// found when it has a recognised citation form, and the URL points at a
// CourtListener search for it.
func (s *Service) VerifyCitation(_ context.Context, cite string) (*domain.CitationCheck, error) {
	cite = strings.TrimSpace(cite)
	check := &domain.CitationCheck{Citation: cite}
	if cite == "" || agentflow.CountCitations(cite) == 0 {
		return check, nil
	}
	check.Found = true
	check.Court = courtFor(cite)
	check.URL = citation.Generate(cite, citation.KindOf(cite)).CourtListener
	return check, nil
}

func courtFor(cite string) string {
	switch {
	case strings.Contains(cite, "K.S.A.") || strings.Contains(cite, "Kan."):
		return "Kansas"
	case strings.Contains(cite, "RSMo") || strings.Contains(cite, "Mo.") || strings.Contains(cite, "S.W."):
		return "Missouri"
	case strings.Contains(cite, "U.S.") || strings.Contains(cite, "F."):
		return "Federal"
	}
	return ""
}

func (s *Service) FetchSummary(ctx context.Context) (domain.DashboardSummary, error) {
	if s.practice == nil {
		return domain.DashboardSummary{}, nil
	}
	return s.practice.FetchSummary(ctx)
}
