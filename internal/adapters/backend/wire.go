package backend

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// The upstream is loosely typed: counts arrive as numbers or arrays, name
// lists as arrays or comma strings. The flex types below decode whatever
// shape arrives and never fail; a value they cannot read becomes zero.

// flexCount is a non-negative count. Arrays count their elements.
// Values above math.MaxInt32 are clamped.
type flexCount int

func (c *flexCount) UnmarshalJSON(b []byte) error {
	*c = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(b, &items) == nil {
			*c = flexCount(len(items))
		}
	case '"':
		var s string
		if json.Unmarshal(b, &s) == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
				*c = flexCount(min(n, math.MaxInt32))
			}
		}
	default:
		var f float64
		if json.Unmarshal(b, &f) == nil && f > 0 {
			*c = flexCount(min(f, math.MaxInt32))
		}
	}
	return nil
}

// flexList is a list of names, sent either as an array or as a comma
// separated string. Non-string array entries are dropped.
type flexList []string

func (l *flexList) UnmarshalJSON(b []byte) error {
	*l = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	var raw []string
	switch b[0] {
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(b, &items) != nil {
			return nil
		}
		for _, it := range items {
			var s string
			if json.Unmarshal(it, &s) == nil {
				raw = append(raw, s)
			}
		}
	case '"':
		var s string
		if json.Unmarshal(b, &s) != nil {
			return nil
		}
		raw = strings.Split(s, ",")
	default:
		return nil
	}
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

// flexText accepts only strings.
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*t = flexText(strings.TrimSpace(s))
	} else {
		*t = ""
	}
	return nil
}

// flexTime accepts RFC 3339 and the space separated SQL form.
type flexTime time.Time

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	*t = flexTime{}
	var s string
	if json.Unmarshal(b, &s) != nil {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			*t = flexTime(ts)
			return nil
		}
	}
	return nil
}

// ─────────────────────────────────────────────
// Requests
// ─────────────────────────────────────────────

type matterDTO struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type chatRequest struct {
	Message      string                  `json:"message"`
	SessionID    string                  `json:"session_id"`
	Jurisdiction string                  `json:"jurisdiction"`
	Matter       *matterDTO              `json:"matter,omitempty"`
	Dashboard    domain.DashboardSummary `json:"dashboard"`
	AgentType    string                  `json:"agent_type,omitempty"`
	FullCrew     bool                    `json:"full_crew,omitempty"`
}

func toChatRequest(req domain.TurnRequest) chatRequest {
	out := chatRequest{
		Message:      req.Query,
		SessionID:    string(req.SessionID),
		Jurisdiction: string(req.Jurisdiction),
		Dashboard:    req.Dashboard,
		AgentType:    string(req.ForceAgent),
		FullCrew:     req.FullCrew,
	}
	if req.Matter != nil {
		out.Matter = &matterDTO{ID: string(req.Matter.ID), Label: req.Matter.Label}
	}
	return out
}

// ─────────────────────────────────────────────
// Responses
// ─────────────────────────────────────────────

// envelopeDTO carries the agent metadata shared by chat replies and
// history entries.
type envelopeDTO struct {
	AgentUsed     flexText   `json:"agent_used"`
	AgentType     flexText   `json:"agent_type"`
	Confidence    *float64   `json:"confidence"`
	SubAgents     flexList   `json:"sub_agents"`
	AgentsUsed    flexList   `json:"agents_used"`
	RisksFlagged  *flexCount `json:"risks_flagged"`
	Citations     *flexCount `json:"citations"`
	MemoryLoaded  *bool      `json:"memory_loaded"`
	MultiAgent    *bool      `json:"multi_agent"`
	CrewAIPowered *bool      `json:"crewai_powered"`
	Model         flexText   `json:"model"`
	TokensUsed    flexCount  `json:"tokens_used"`
	DurationMS    flexCount  `json:"duration_ms"`
}

func (e envelopeDTO) toDomain() domain.AgentEnvelope {
	agent := e.AgentUsed
	if agent == "" {
		agent = e.AgentType
	}
	env := domain.AgentEnvelope{
		Agent:        domain.ParseAgentType(string(agent)),
		MemoryLoaded: e.MemoryLoaded,
		MultiAgent:   e.MultiAgent,
	}
	if env.MultiAgent == nil {
		env.MultiAgent = e.CrewAIPowered
	}
	if e.Confidence != nil {
		c := domain.ClampConfidence(*e.Confidence)
		env.Confidence = &c
	}
	env.SubAgents = e.SubAgents
	if len(env.SubAgents) == 0 {
		env.SubAgents = e.AgentsUsed
	}
	if e.RisksFlagged != nil {
		n := int(*e.RisksFlagged)
		env.RisksFlagged = &n
	}
	if e.Citations != nil {
		n := int(*e.Citations)
		env.Citations = &n
	}
	if e.TokensUsed > 0 || e.DurationMS > 0 || e.Model != "" {
		env.Telemetry = &domain.Telemetry{
			TokensUsed: int(e.TokensUsed),
			DurationMS: int64(e.DurationMS),
			Model:      string(e.Model),
		}
	}
	return env
}

type dashboardUpdateDTO struct {
	PipelineSteps flexList  `json:"pipeline_steps"`
	AgentsInvoked flexList  `json:"agents_invoked"`
	NewDocuments  flexCount `json:"new_documents"`
	NewTasks      flexCount `json:"new_tasks"`
	EventAdded    flexText  `json:"event_added"`
	MatterID      flexText  `json:"matter_id"`
}

func (d *dashboardUpdateDTO) toDomain() *domain.DashboardUpdate {
	if d == nil {
		return nil
	}
	return &domain.DashboardUpdate{
		PipelineSteps: d.PipelineSteps,
		AgentsInvoked: d.AgentsInvoked,
		NewDocuments:  int(d.NewDocuments),
		NewTasks:      int(d.NewTasks),
		EventAdded:    string(d.EventAdded),
		MatterID:      domain.MatterID(d.MatterID),
	}
}

type chatResponse struct {
	envelopeDTO
	Success         *bool               `json:"success"`
	Content         string              `json:"content"`
	Response        string              `json:"response"`
	Jurisdiction    flexText            `json:"jurisdiction"`
	Error           flexText            `json:"error"`
	DashboardUpdate *dashboardUpdateDTO `json:"dashboard_update"`
}

type messageDTO struct {
	envelopeDTO
	ID        json.RawMessage `json:"id"`
	Role      flexText        `json:"role"`
	Content   string          `json:"content"`
	Text      string          `json:"text"`
	CreatedAt flexTime        `json:"created_at"`
}

func (m messageDTO) toDomain(session domain.SessionID) *domain.Message {
	text := m.Content
	if text == "" {
		text = m.Text
	}
	msg := &domain.Message{
		ID:        domain.MessageID(rawID(m.ID)),
		SessionID: session,
		Author:    domain.RoleUser,
		Text:      text,
		CreatedAt: time.Time(m.CreatedAt),
	}
	switch strings.ToLower(string(m.Role)) {
	case "agent", "assistant":
		msg.Author = domain.RoleAgent
		env := m.envelopeDTO.toDomain()
		msg.Agent = &env
	}
	return msg
}

type historyResponse struct {
	Messages []messageDTO `json:"messages"`
}

type memoryDTO struct {
	ID        json.RawMessage `json:"id"`
	MatterID  json.RawMessage `json:"matter_id"`
	SessionID flexText        `json:"session_id"`
	AgentType flexText        `json:"agent_type"`
	Key       flexText        `json:"key"`
	Content   string          `json:"content"`
	CreatedAt flexTime        `json:"created_at"`
}

func (m memoryDTO) toDomain() *domain.Memory {
	return &domain.Memory{
		ID:        domain.MemoryID(rawID(m.ID)),
		MatterID:  domain.MatterID(rawID(m.MatterID)),
		SessionID: domain.SessionID(m.SessionID),
		Agent:     domain.ParseAgentType(string(m.AgentType)),
		Key:       string(m.Key),
		Content:   m.Content,
		CreatedAt: time.Time(m.CreatedAt),
	}
}

type memoriesResponse struct {
	Memories []memoryDTO `json:"memories"`
}

type verifyResponse struct {
	Citation flexText        `json:"citation"`
	Found    bool            `json:"found"`
	CaseName flexText        `json:"case_name"`
	Court    flexText        `json:"court"`
	Year     flexCount       `json:"year"`
	URL      flexText        `json:"url"`
	Result   *verifyResponse `json:"result"`
}

type summaryDTO struct {
	ActiveCases    flexCount   `json:"active_cases"`
	ActiveClients  flexCount   `json:"active_clients"`
	PendingTasks   flexCount   `json:"pending_tasks"`
	OverdueTasks   flexCount   `json:"overdue_tasks"`
	TotalDocuments flexCount   `json:"total_documents"`
	UpcomingEvents flexCount   `json:"upcoming_events"`
	Summary        *summaryDTO `json:"summary"`
}

func (s summaryDTO) toDomain() domain.DashboardSummary {
	if s.Summary != nil {
		return s.Summary.toDomain()
	}
	return domain.DashboardSummary{
		ActiveCases:    int(s.ActiveCases),
		ActiveClients:  int(s.ActiveClients),
		PendingTasks:   int(s.PendingTasks),
		OverdueTasks:   int(s.OverdueTasks),
		TotalDocuments: int(s.TotalDocuments),
		UpcomingEvents: int(s.UpcomingEvents),
	}.Normalize()
}

// rawID reads an identifier sent as either a string or a number.
func rawID(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(b, &s) == nil {
		return s
	}
	return string(b)
}
