package agentflow

import (
	"context"
	"fmt"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// AgentInput is what a specialist works from. Previous holds the output
// of the agent before it in a crew run.
type AgentInput struct {
	Query       string
	Previous    string
	MatterFacts string
	ConvCtx     domain.ConversationContext
}

type AgentOutput struct {
	Reply          string
	UpdatedContext domain.ConversationContext
}

// Agent is one specialist of the crew.
type Agent interface {
	Type() domain.AgentType
	Run(ctx context.Context, in AgentInput) (AgentOutput, error)
}

// runTask sends task to the LLM under the persona of agent.
func runTask(ctx context.Context, llm domain.LLMClient, agent domain.AgentType, task string, in AgentInput) (AgentOutput, error) {
	convCtx := in.ConvCtx
	convCtx.Agent = agent

	reply, err := llm.GenerateReply(ctx, task, convCtx)
	if err != nil {
		return AgentOutput{}, fmt.Errorf("%s: %w", agent, err)
	}
	return AgentOutput{Reply: reply, UpdatedContext: in.ConvCtx}, nil
}

func jurisdictionName(j domain.Jurisdiction) string {
	switch j {
	case domain.JurisdictionMultistate:
		return "Kansas & Missouri"
	case "":
		return "Missouri"
	}
	return j.Label()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// withPrevious appends the prior crew member's output to a task.
func withPrevious(task string, in AgentInput) string {
	if in.Previous == "" {
		return task
	}
	return task + "\n\nPrevious agent output:\n" + in.Previous
}
