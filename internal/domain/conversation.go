package domain

import "strings"

// AgentType identifies the specialist that produced an agent message.
type AgentType string

const (
	AgentResearcher   AgentType = "researcher"
	AgentDrafter      AgentType = "drafter"
	AgentAnalyst      AgentType = "analyst"
	AgentStrategist   AgentType = "strategist"
	AgentOrchestrator AgentType = "orchestrator"
)

// ParseAgentType normalises a backend-supplied agent name. Unknown names are
// kept verbatim so they can still be shown; Known reports false for them.
func ParseAgentType(s string) AgentType {
	return AgentType(strings.ToLower(strings.TrimSpace(s)))
}

func (a AgentType) Known() bool {
	switch a {
	case AgentResearcher, AgentDrafter, AgentAnalyst, AgentStrategist, AgentOrchestrator:
		return true
	}
	return false
}

// Label is the human readable tag shown on agent bubbles.
func (a AgentType) Label() string {
	switch a {
	case AgentResearcher:
		return "Researcher"
	case AgentDrafter:
		return "Drafter"
	case AgentAnalyst:
		return "Analyst"
	case AgentStrategist:
		return "Strategist"
	case AgentOrchestrator:
		return "Orchestrator"
	default:
		return "Agent"
	}
}

// Style is the CSS class suffix for the agent; unknown agents get the default.
func (a AgentType) Style() string {
	if a.Known() {
		return "agent-" + string(a)
	}
	return "agent-default"
}

// Telemetry is the token/latency information reported with a reply.
type Telemetry struct {
	TokensUsed int
	DurationMS int64
	Model      string
}

// AgentEnvelope is the metadata attached to agent-authored messages.
// Optional fields are pointers so "absent" and "zero" stay distinct.
type AgentEnvelope struct {
	Agent        AgentType
	Confidence   *float64
	SubAgents    []string
	RisksFlagged *int
	Citations    *int
	MemoryLoaded *bool
	MultiAgent   *bool
	Telemetry    *Telemetry
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c != c: // NaN
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// Message represents a chat turn (user or agent).
type Message struct {
	ID        MessageID
	SessionID SessionID
	Author    Role
	Text      string
	CreatedAt Timestamp

	// Agent is set on agent-authored messages only.
	Agent *AgentEnvelope
	// IsError marks inline failure notices appended by the controller.
	IsError bool
}

// Matter is the case a session may be bound to.
type Matter struct {
	ID    MatterID
	Label string
}

// Session is the server-side chat session record.
type Session struct {
	ID           SessionID
	Jurisdiction Jurisdiction
	Matter       *Matter
	CreatedAt    Timestamp
	UpdatedAt    Timestamp
}
