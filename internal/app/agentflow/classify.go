package agentflow

import (
	"strings"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// signal adds weight to an agent when any of its phrases occurs in the
// lower-cased message. With each set, every matching phrase counts.
type signal struct {
	phrases []string
	weight  int
	each    bool
}

var intentSignals = []struct {
	agent   domain.AgentType
	signals []signal
}{
	{domain.AgentResearcher, []signal{
		{phrases: []string{"research", "case law", "precedent", "statute", "find", "search",
			"cite", "citation", "authority", "holding", "ruling", "sol",
			"limitation", "rule", "regulation", "code", "preemption"}, weight: 3, each: true},
		{phrases: []string{"k.s.a", "ksa ", "kansas statute", "chapter 60", "10th circuit"}, weight: 6},
		{phrases: []string{"rsmo", "r.s.mo", "missouri statute", "missouri supreme court rule", "8th circuit"}, weight: 6},
	}},
	{domain.AgentAnalyst, []signal{
		{phrases: []string{"risk", "assess", "evaluat", "analyz", "review", "strength", "weakness",
			"exposure", "damage", "inconsisten", "deposition", "enforceab", "score",
			"audit", "calculate", "comparative fault"}, weight: 3, each: true},
		{phrases: []string{"risk assess"}, weight: 5},
		{phrases: []string{"what am i missing"}, weight: 4},
	}},
	{domain.AgentDrafter, []signal{
		{phrases: []string{"draft", "write", "prepare", "create", "generate", "motion", "complaint",
			"letter", "brief", "contract", "agreement", "petition", "template",
			"engagement", "demand", "discovery request"}, weight: 3, each: true},
		{phrases: []string{"draft a", "draft the", "draft my"}, weight: 5},
		{phrases: []string{"motion to"}, weight: 6},
	}},
	{domain.AgentStrategist, []signal{
		{phrases: []string{"strateg", "settle", "settlement", "timeline", "calendar", "deadline",
			"budget", "scenario", "option", "plan", "mediat", "arbitrat", "trial",
			"recommend", "proactive", "missing", "next step", "appeal"}, weight: 3, each: true},
		{phrases: []string{"what am i missing"}, weight: 5},
	}},
}

// Classify routes a message to a specialist by keyword score. Ties go to
// the earlier of researcher, analyst, drafter, strategist; a message with
// no signal goes to the strategist.
func Classify(message string) domain.AgentType {
	msg := strings.ToLower(message)

	best, bestScore := domain.AgentStrategist, 0
	for _, intent := range intentSignals {
		score := 0
		for _, s := range intent.signals {
			score += s.score(msg)
		}
		if score > bestScore {
			best, bestScore = intent.agent, score
		}
	}
	return best
}

func (s signal) score(msg string) int {
	total := 0
	for _, p := range s.phrases {
		if strings.Contains(msg, p) {
			if !s.each {
				return s.weight
			}
			total += s.weight
		}
	}
	return total
}

var draftingHints = []string{"draft", "write", "prepare", "motion", "complaint", "letter"}

// needsDrafter reports whether a crew run should include the drafter.
func needsDrafter(query string) bool {
	q := strings.ToLower(query)
	for _, h := range draftingHints {
		if strings.Contains(q, h) {
			return true
		}
	}
	return false
}
