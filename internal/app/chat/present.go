package chat

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/render/citation"
	"github.com/PabloGalante/lawyrs-chat/internal/render/markdown"
)

// Bubble is the display form of one transcript message.
type Bubble struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	HTML       string    `json:"html"`
	AgentLabel string    `json:"agent_label,omitempty"`
	AgentStyle string    `json:"agent_style,omitempty"`
	Confidence string    `json:"confidence,omitempty"`
	SubAgents  []string  `json:"sub_agents,omitempty"`
	Footers    []string  `json:"footers,omitempty"`
	Telemetry  string    `json:"telemetry,omitempty"`
	IsError    bool      `json:"is_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Present builds the bubble for msg. User text is escaped, agent text goes
// through the markdown renderer and then gets citation links.
func Present(msg *domain.Message) Bubble {
	b := Bubble{
		ID:        string(msg.ID),
		Role:      string(msg.Author),
		CreatedAt: msg.CreatedAt,
		IsError:   msg.IsError,
	}

	if msg.Author != domain.RoleAgent || msg.IsError {
		b.HTML = strings.ReplaceAll(html.EscapeString(msg.Text), "\n", "<br>")
		return b
	}
	b.HTML = citation.Annotate(markdown.Render(msg.Text))

	env := msg.Agent
	if env == nil {
		env = &domain.AgentEnvelope{}
	}
	b.AgentLabel = env.Agent.Label()
	b.AgentStyle = env.Agent.Style()
	if env.Confidence != nil {
		b.Confidence = ConfidenceBadge(*env.Confidence)
	}
	for _, s := range env.SubAgents {
		if s = strings.TrimSpace(s); s != "" {
			b.SubAgents = append(b.SubAgents, domain.ParseAgentType(s).Label())
		}
	}
	b.Footers = footers(env)
	b.Telemetry = telemetryLine(env.Telemetry)
	return b
}

// ConfidenceBadge formats a confidence in [0,1] as a whole percentage.
func ConfidenceBadge(c float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(domain.ClampConfidence(c)*100)))
}

func footers(env *domain.AgentEnvelope) []string {
	var out []string
	if env.Citations != nil && *env.Citations > 0 {
		out = append(out, fmt.Sprintf("%d citation(s) included", *env.Citations))
	}
	if env.RisksFlagged != nil && *env.RisksFlagged > 0 {
		out = append(out, fmt.Sprintf("%d risk(s) flagged", *env.RisksFlagged))
	}
	if env.MemoryLoaded != nil && *env.MemoryLoaded {
		out = append(out, "Matter memory loaded")
	}
	if env.MultiAgent != nil && *env.MultiAgent {
		out = append(out, "Multi-agent pipeline")
	}
	return out
}

func telemetryLine(t *domain.Telemetry) string {
	if t == nil {
		return ""
	}
	var parts []string
	if t.TokensUsed > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", t.TokensUsed))
	}
	if t.DurationMS > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", float64(t.DurationMS)/1000))
	}
	if t.Model != "" {
		parts = append(parts, t.Model)
	}
	return strings.Join(parts, " · ")
}

// summaryLine is the short toast shown when a reply lands.
func summaryLine(env domain.AgentEnvelope) string {
	parts := []string{env.Agent.Label() + " replied"}
	if env.Confidence != nil {
		parts = append(parts, ConfidenceBadge(*env.Confidence)+" confidence")
	}
	if env.Citations != nil && *env.Citations > 0 {
		parts = append(parts, fmt.Sprintf("%d citation(s)", *env.Citations))
	}
	if env.RisksFlagged != nil && *env.RisksFlagged > 0 {
		parts = append(parts, fmt.Sprintf("%d risk(s)", *env.RisksFlagged))
	}
	return strings.Join(parts, " · ")
}
