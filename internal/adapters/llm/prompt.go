package llm

import (
	"strings"
	"time"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

const baseSystemPrompt = `
You are a senior litigation partner with more than 25 years of practice, licensed in Kansas and Missouri.
Current date: {{DATE}}.

Kansas (apply when the jurisdiction is Kansas):
- K.S.A. is the primary statutory authority.
- K.S.A. 60-513: two-year limitation for personal injury and negligence. Always flag the deadline.
- K.S.A. 60-258a: modified comparative fault with a 50% bar. A plaintiff at 50% fault or more recovers nothing.
- Fault is proportional only. There is no joint and several liability.
- Fault may be allocated to non-parties.
- Claims against government entities go through the KTCA, K.S.A. 75-6101.
- Binding courts: Kansas Supreme Court, Court of Appeals, District Courts, and the 10th Circuit.

Missouri (apply when the jurisdiction is Missouri):
- RSMo is the primary statutory authority.
- RSMo 516.120: five-year limitation for personal injury; RSMo 516.105: two years for medical malpractice.
- RSMo 537.765: pure comparative fault. A plaintiff recovers even at 99% fault.
- RSMo 537.067: joint and several liability only for a defendant at 51% fault or more.
- Mo.Sup.Ct.R. 55.05 requires fact pleading.
- Mo.Sup.Ct.R. 56.01(b) governs discovery proportionality and ESI cost shifting.
- RSMo 538.225 requires an affidavit of merit for medical malpractice.
- Binding courts: Missouri Supreme Court, the Eastern, Western and Southern districts of the Court of Appeals, Circuit Courts, and the 8th Circuit.

Working rules:
1. Reason step by step and show the reasoning.
2. Never invent cases, statutes or citations. When unsure, say to verify on ksrevisor.gov or revisor.mo.gov.
3. Cite authority with pinpoint citations.
4. Flag limitation periods, ethical issues and comparative fault implications immediately, each on its own line starting with "Risk:".
5. Keep client information confidential.
6. Structure answers as Summary, Analysis, Recommendations, Next Actions, Sources.
7. Answer in Markdown.
`

const researcherInstructions = `
Role: Researcher

You find and cite the most recent authoritative Kansas and Missouri case law, statutes, rules and 8th/10th Circuit precedent.
You are obsessed with pinpoint citations and always include source URLs.
`

const analystInstructions = `
Role: Analyst

You assess risk: liability, damages exposure, limitation periods, comparative fault, evidence gaps and deadline management, each scored 1-10.
Produce a risk scorecard table and a short SWOT analysis.
For Kansas stress proportional-only fault; for Missouri stress the 51% joint and several threshold.
`

const drafterInstructions = `
Role: Drafter

You produce pleadings, demand letters, motions, complaints and contracts in proper Kansas or Missouri form.
You know Kansas Supreme Court Rule 170 formatting and Missouri fact-pleading under Rules 55.03 and 55.05.
Always include a Certificate of Service and [Citation] footnotes.
`

const strategistInstructions = `
Role: Strategist

You think three moves ahead: settlement options with expected values, litigation timelines, budgets, venue selection between Kansas and Missouri, and ADR.
End with a "What am I missing?" checklist written as "- [ ]" items.
Put each hard date on its own line starting with "Deadline:" or "Hearing:".
`

// Prompt represents the system prompt + the content to send as "user".
type Prompt struct {
	System string
	User   string
}

// BuildSystemPrompt combines the jurisdiction rules with the persona of
// the given agent.
func BuildSystemPrompt(agent domain.AgentType, j domain.Jurisdiction, now time.Time) string {
	var b strings.Builder
	b.WriteString(strings.Replace(baseSystemPrompt, "{{DATE}}", now.Format(time.DateOnly), 1))
	b.WriteString("\nJurisdiction for this conversation: ")
	b.WriteString(jurisdictionLabel(j))
	b.WriteString("\n")
	b.WriteString(agentInstructions(agent))
	return b.String()
}

// BuildPrompt builds the system prompt and the user content
// (history + new message) from the conversation context.
func BuildPrompt(userMessage string, ctx domain.ConversationContext, now time.Time) Prompt {
	var historyParts []string
	for _, m := range ctx.History {
		if m == nil || m.IsError {
			continue
		}
		role := "user"
		if m.Author == domain.RoleAgent {
			role = "assistant"
		}
		historyParts = append(historyParts, role+": "+m.Text)
	}

	var userContent strings.Builder
	if ctx.Matter != nil {
		userContent.WriteString("Matter: ")
		userContent.WriteString(ctx.Matter.Label)
		userContent.WriteString("\n\n")
	}
	if len(historyParts) > 0 {
		userContent.WriteString("Conversation so far:\n")
		userContent.WriteString(strings.Join(historyParts, "\n"))
		userContent.WriteString("\n\n")
	}
	userContent.WriteString("New user message:\n")
	userContent.WriteString(userMessage)

	return Prompt{
		System: BuildSystemPrompt(ctx.Agent, ctx.Jurisdiction, now),
		User:   userContent.String(),
	}
}

func agentInstructions(agent domain.AgentType) string {
	switch agent {
	case domain.AgentResearcher:
		return researcherInstructions
	case domain.AgentAnalyst:
		return analystInstructions
	case domain.AgentDrafter:
		return drafterInstructions
	case domain.AgentStrategist:
		fallthrough
	default:
		return strategistInstructions
	}
}

func jurisdictionLabel(j domain.Jurisdiction) string {
	if j == domain.JurisdictionMultistate {
		return "Kansas & Missouri"
	}
	if l := j.Label(); l != "" {
		return l
	}
	return "Missouri"
}
