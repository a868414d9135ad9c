package agentflow

import (
	"context"
	"fmt"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// AnalystAgent scores the risks of a matter.
type AnalystAgent struct {
	llm domain.LLMClient
}

func NewAnalystAgent(llm domain.LLMClient) *AnalystAgent {
	return &AnalystAgent{llm: llm}
}

func (a *AnalystAgent) Type() domain.AgentType {
	return domain.AgentAnalyst
}

func (a *AnalystAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	task := fmt.Sprintf(
		"Perform a risk analysis for the following matter under %s law.\n\n"+
			"Query: %s\nMatter facts: %s\n\n"+
			"Score 1-10: liability exposure, damages, limitation deadlines, comparative fault, "+
			"evidence gaps, deadline management.\n"+
			"Include a SWOT analysis and damages scenarios.",
		jurisdictionName(in.ConvCtx.Jurisdiction), in.Query, orDefault(in.MatterFacts, "Not specified"),
	)
	return runTask(ctx, a.llm, a.Type(), withPrevious(task, in), in)
}
