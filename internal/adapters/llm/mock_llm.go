package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// MockLLM answers with fixed, agent-shaped Markdown so the whole chat
// pipeline can run locally without a model.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) GenerateReply(ctx context.Context, prompt string, convCtx domain.ConversationContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	topic := firstLine(prompt)
	j := jurisdictionLabel(convCtx.Jurisdiction)

	switch convCtx.Agent {
	case domain.AgentResearcher:
		return fmt.Sprintf(`## Summary
Research on %q under %s law.

## Authority
- RSMo 537.765 (pure comparative fault)
- K.S.A. 60-258a (modified comparative fault, 50%% bar)

Risk: confirm the limitation period before filing.

<small>Verify on ksrevisor.gov or revisor.mo.gov.</small>`, topic, j), nil

	case domain.AgentAnalyst:
		return fmt.Sprintf(`## Risk scorecard (%s)
| Factor | Score |
|:--|--:|
| Liability | 6 |
| Deadlines | 8 |

Risk: limitation period is close.
Risk: comparative fault allocation is contested.`, j), nil

	case domain.AgentDrafter:
		return fmt.Sprintf(`## Draft
**IN THE CIRCUIT COURT** (%s)

%s

### Certificate of Service
Served on all counsel of record.`, j, topic), nil

	default:
		return fmt.Sprintf(`## Strategy (%s)
1. Negotiate early settlement.
2. Prepare for mediation.

### What am I missing?
- [ ] Confirm insurance limits
- [ ] Calendar expert disclosure

Deadline: expert disclosures due in 30 days`, j), nil
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 120 {
		s = string(r[:120])
	}
	return s
}
