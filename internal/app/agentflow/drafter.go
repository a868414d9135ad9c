package agentflow

import (
	"context"
	"fmt"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// DrafterAgent writes pleadings, letters and contracts.
type DrafterAgent struct {
	llm domain.LLMClient
}

func NewDrafterAgent(llm domain.LLMClient) *DrafterAgent {
	return &DrafterAgent{llm: llm}
}

func (a *DrafterAgent) Type() domain.AgentType {
	return domain.AgentDrafter
}

func (a *DrafterAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	j := jurisdictionName(in.ConvCtx.Jurisdiction)
	task := fmt.Sprintf(
		"Draft the requested document under %s law.\n\n"+
			"Instructions: %s\nMatter facts: %s\n\n"+
			"Include every section %s rules require: caption, substantive sections, "+
			"certificate of service and citation footnotes. Finish with a review checklist.",
		j, in.Query, orDefault(in.MatterFacts, "General template"), j,
	)
	return runTask(ctx, a.llm, a.Type(), withPrevious(task, in), in)
}
