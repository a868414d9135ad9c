package chat_test

import (
	"html"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/lawyrs-chat/internal/app/chat"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/render/citation"
)

func TestPresentUserTextIsEscaped(t *testing.T) {
	b := chat.Present(&domain.Message{
		Author: domain.RoleUser,
		Text:   "<script>alert(1)</script>\n**not bold**",
	})
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;<br>**not bold**", b.HTML)
	assert.Empty(t, b.AgentLabel)
}

func TestPresentAgentEnvelope(t *testing.T) {
	b := chat.Present(&domain.Message{
		Author: domain.RoleAgent,
		Text:   "Done.",
		Agent: &domain.AgentEnvelope{
			Agent:        domain.AgentOrchestrator,
			Confidence:   ptr(1.7),
			SubAgents:    []string{"researcher", " drafter ", ""},
			RisksFlagged: ptr(2),
			MemoryLoaded: ptr(true),
			MultiAgent:   ptr(true),
			Telemetry:    &domain.Telemetry{TokensUsed: 1200, DurationMS: 3400, Model: "gemini-2.5-flash-lite"},
		},
	})
	assert.Equal(t, "100%", b.Confidence)
	assert.Equal(t, []string{"Researcher", "Drafter"}, b.SubAgents)
	assert.Equal(t, []string{"2 risk(s) flagged", "Matter memory loaded", "Multi-agent pipeline"}, b.Footers)
	assert.Equal(t, "1200 tokens · 3.4s · gemini-2.5-flash-lite", b.Telemetry)
}

func TestPresentAgentWithoutEnvelope(t *testing.T) {
	b := chat.Present(&domain.Message{Author: domain.RoleAgent, Text: "plain"})
	assert.Equal(t, "Agent", b.AgentLabel)
	assert.Empty(t, b.Confidence)
	assert.Empty(t, b.Footers)
}

func TestConfidenceBadge(t *testing.T) {
	assert.Equal(t, "82%", chat.ConfidenceBadge(0.82))
	assert.Equal(t, "0%", chat.ConfidenceBadge(-3))
	assert.Equal(t, "0%", chat.ConfidenceBadge(math.NaN()))
}

func TestPresentLinksCitationsInAgentReply(t *testing.T) {
	b := chat.Present(&domain.Message{
		Author: domain.RoleAgent,
		Text:   "Under **RSMo 537.765** fault is compared. Compare `K.S.A. 60-513`.",
		Agent:  &domain.AgentEnvelope{Agent: domain.AgentResearcher},
	})

	links := citation.Generate("RSMo 537.765", citation.KindMissouriStatute)
	for _, u := range []string{links.GoogleScholar, links.CourtListener, links.Casetext, links.Verify} {
		assert.Contains(t, b.HTML, html.EscapeString(u))
	}
	assert.Contains(t, b.HTML, `<span class="cite cite-mo">RSMo 537.765`)
	assert.Equal(t, 1, strings.Count(b.HTML, `<span class="cite`), "code spans keep their citations literal")
}

func TestPresentUserCitationIsNotLinked(t *testing.T) {
	b := chat.Present(&domain.Message{Author: domain.RoleUser, Text: "what does RSMo 537.765 say?"})
	assert.NotContains(t, b.HTML, "cite")
}
