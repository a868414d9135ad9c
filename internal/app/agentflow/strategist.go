package agentflow

import (
	"context"
	"fmt"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

// StrategistAgent plans settlement, timeline and budget. It closes every
// crew run.
type StrategistAgent struct {
	llm domain.LLMClient
}

func NewStrategistAgent(llm domain.LLMClient) *StrategistAgent {
	return &StrategistAgent{llm: llm}
}

func (a *StrategistAgent) Type() domain.AgentType {
	return domain.AgentStrategist
}

func (a *StrategistAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	log := observability.LoggerFromContext(ctx).With("agent", a.Type())
	log.Info("strategist agent running")

	task := fmt.Sprintf(
		"Develop a litigation strategy for the following under %s law.\n\n"+
			"Query: %s\nMatter facts: %s\n\n"+
			"Provide:\n"+
			"1. Three settlement options with expected values\n"+
			"2. Litigation timeline with key deadlines\n"+
			"3. Budget projection\n"+
			"4. Venue analysis if more than one forum is possible\n"+
			"5. A \"what am I missing?\" checklist\n"+
			"6. The next three actions",
		jurisdictionName(in.ConvCtx.Jurisdiction), in.Query, orDefault(in.MatterFacts, "Not specified"),
	)

	out, err := runTask(ctx, a.llm, a.Type(), withPrevious(task, in), in)
	if err != nil {
		log.Error("strategist agent error", "error", err)
		return AgentOutput{}, err
	}
	log.Info("strategist agent success")
	return out, nil
}
