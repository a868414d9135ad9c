package agentflow

import (
	"context"
	"fmt"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// ResearcherAgent finds and cites authority.
type ResearcherAgent struct {
	llm domain.LLMClient
}

func NewResearcherAgent(llm domain.LLMClient) *ResearcherAgent {
	return &ResearcherAgent{llm: llm}
}

func (a *ResearcherAgent) Type() domain.AgentType {
	return domain.AgentResearcher
}

func (a *ResearcherAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	j := jurisdictionName(in.ConvCtx.Jurisdiction)
	task := fmt.Sprintf(
		"Research the following legal question under %s law:\n\n%s\n\n"+
			"Provide:\n"+
			"1. Relevant statutes with pinpoint citations and URLs\n"+
			"2. Key case law with holdings and citations\n"+
			"3. Limitation periods and deadline flags\n"+
			"4. Comparative fault implications\n"+
			"5. Procedural requirements specific to %s\n"+
			"6. Risks and verification notes\n"+
			"7. Recommended next actions",
		j, in.Query, j,
	)
	return runTask(ctx, a.llm, a.Type(), withPrevious(task, in), in)
}
