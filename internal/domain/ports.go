package domain

import "context"

// TurnRequest is one user turn sent to the agent backend.
type TurnRequest struct {
	SessionID    SessionID
	Query        string
	Jurisdiction Jurisdiction
	Matter       *Matter
	Dashboard    DashboardSummary
	// ForceAgent bypasses intent classification when set.
	ForceAgent AgentType
	FullCrew   bool
}

// TurnReply is the normalised backend answer.
type TurnReply struct {
	Text         string
	Jurisdiction Jurisdiction
	Envelope     AgentEnvelope
	Dashboard    *DashboardUpdate
}

// AgentBackend is the upstream multi-agent reasoning service.
type AgentBackend interface {
	SendTurn(ctx context.Context, req TurnRequest) (*TurnReply, error)
	FetchHistory(ctx context.Context, id SessionID) ([]*Message, error)
	ClearSession(ctx context.Context, id SessionID) error

	ListMemories(ctx context.Context) ([]*Memory, error)
	SearchMemories(ctx context.Context, q MemoryQuery) ([]*Memory, error)
	DeleteMemory(ctx context.Context, id MemoryID) error

	VerifyCitation(ctx context.Context, citation string) (*CitationCheck, error)
}

// SummarySource is the authoritative source for a full dashboard refresh.
type SummarySource interface {
	FetchSummary(ctx context.Context) (DashboardSummary, error)
}

// SummaryStore holds the cached DashboardSummary.
type SummaryStore interface {
	LoadSummary(ctx context.Context) (DashboardSummary, error)
	SaveSummary(ctx context.Context, s DashboardSummary) error
	// MergeSummary atomically adds delta to the stored counters and returns
	// the values on either side of the addition.
	MergeSummary(ctx context.Context, delta DashboardSummary) (before, after DashboardSummary, err error)
}

// LLMClient defines how the in-process backend talks to a language model.
type LLMClient interface {
	GenerateReply(ctx context.Context, prompt string, convCtx ConversationContext) (string, error)
}

// ConversationContext gives the LLM minimal context about the conversation.
type ConversationContext struct {
	SessionID    SessionID
	// Agent selects the specialist persona for the system prompt.
	Agent        AgentType
	Jurisdiction Jurisdiction
	Matter       *Matter
	History      []*Message
}

// SessionStore defines session persistence for the in-process backend.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	DeleteSession(ctx context.Context, id SessionID) error
}

// MessageStore defines message persistence.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessagesBySession(ctx context.Context, sessionID SessionID, limit int) ([]*Message, error)
	DeleteMessagesBySession(ctx context.Context, sessionID SessionID) error
}

// MemoryStore persists agent memories.
type MemoryStore interface {
	AppendMemory(ctx context.Context, m *Memory) error
	ListMemories(ctx context.Context, q MemoryQuery, limit int) ([]*Memory, error)
	DeleteMemory(ctx context.Context, id MemoryID) error
}

// EventPublisher publishes domain events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}
