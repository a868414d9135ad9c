package agentflow

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

// RunResult is the outcome of a single-agent or crew run.
type RunResult struct {
	Reply  string
	Agent  domain.AgentType
	Agents []domain.AgentType
	Steps  []string
}

// Orchestrator is responsible for running one specialist or the whole
// crew in sequence.
type Orchestrator struct {
	agents map[domain.AgentType]Agent
}

// NewDefaultOrchestrator constructs the four specialists.
func NewDefaultOrchestrator(llm domain.LLMClient) *Orchestrator {
	return NewOrchestrator(
		NewResearcherAgent(llm),
		NewAnalystAgent(llm),
		NewDrafterAgent(llm),
		NewStrategistAgent(llm),
	)
}

func NewOrchestrator(agents ...Agent) *Orchestrator {
	o := &Orchestrator{agents: make(map[domain.AgentType]Agent, len(agents))}
	for _, a := range agents {
		o.agents[a.Type()] = a
	}
	return o
}

// RunSingle runs one specialist. An empty or unknown agent type is
// classified from the query.
func (o *Orchestrator) RunSingle(ctx context.Context, agent domain.AgentType, in AgentInput) (*RunResult, error) {
	steps := []string{}
	if _, ok := o.agents[agent]; !ok {
		agent = Classify(in.Query)
		steps = append(steps, "Intent classified: "+agent.Label())
	} else {
		steps = append(steps, "Routed to "+agent.Label())
	}
	out, err := o.run(ctx, []domain.AgentType{agent}, in)
	if err != nil {
		return nil, err
	}
	out.Steps = append(steps, out.Steps...)
	return out, nil
}

// RunCrew executes researcher, analyst, drafter (when the query asks for a
// document) and strategist, each agent's output feeding the next.
func (o *Orchestrator) RunCrew(ctx context.Context, in AgentInput) (*RunResult, error) {
	chain := []domain.AgentType{domain.AgentResearcher, domain.AgentAnalyst}
	if needsDrafter(in.Query) {
		chain = append(chain, domain.AgentDrafter)
	}
	chain = append(chain, domain.AgentStrategist)

	out, err := o.run(ctx, chain, in)
	if err != nil {
		return nil, err
	}
	out.Agent = domain.AgentOrchestrator
	out.Steps = append([]string{"Full crew assembled"}, out.Steps...)
	return out, nil
}

// run executes the chain of agents sequentially.
func (o *Orchestrator) run(ctx context.Context, chain []domain.AgentType, in AgentInput) (*RunResult, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("no agents configured in orchestrator")
	}

	log := observability.LoggerFromContext(ctx).With("jurisdiction", in.ConvCtx.Jurisdiction)
	log.Info("orchestrator started", "agents_count", len(chain))

	res := &RunResult{Agent: chain[len(chain)-1]}
	var out AgentOutput
	for _, t := range chain {
		ag, ok := o.agents[t]
		if !ok {
			return nil, fmt.Errorf("agent %s not configured", t)
		}

		start := time.Now()
		log.Info("agent run start", "agent", t)

		var err error
		out, err = ag.Run(ctx, in)
		if err != nil {
			log.Error("agent failed", "agent", t, "error", err)
			return nil, fmt.Errorf("agent %s failed: %w", t, err)
		}

		log.Info("agent run end", "agent", t, "elapsed_ms", time.Since(start).Milliseconds())
		res.Agents = append(res.Agents, t)
		res.Steps = append(res.Steps, t.Label()+" completed")

		// The output of an agent is the input for the next agent
		in.Previous = out.Reply
		in.ConvCtx = out.UpdatedContext
	}

	res.Reply = out.Reply
	log.Info("orchestrator end")
	return res, nil
}
