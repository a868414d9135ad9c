package agentflow

import (
	"regexp"
	"slices"
	"strings"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/render/citation"
)

var (
	riskLine      = regexp.MustCompile(`(?im)^\s*(?:[-*]\s*)?(?:\*\*)?(?:⚠️?\s*)?risk(?:\*\*)?\s*:`)
	openCheckItem = regexp.MustCompile(`(?m)^\s*[-*]\s*\[ \]\s*\S`)
	eventLine     = regexp.MustCompile(`(?im)^\s*(?:[-*]\s*)?(?:\*\*)?(deadline|hearing)(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.+)$`)
)

// CountCitations counts distinct citation tokens in text.
func CountCitations(text string) int {
	return citation.Count(text)
}

// CountRisks counts lines flagged with "Risk:".
func CountRisks(text string) int {
	return len(riskLine.FindAllStringIndex(text, -1))
}

// DeriveUpdate turns a finished run into the dashboard side effects it
// implies: a drafter run saves one document, open checklist items in a
// strategist answer become tasks, and the first Deadline/Hearing line
// becomes a calendar event.
func DeriveUpdate(res *RunResult, matter *domain.Matter) *domain.DashboardUpdate {
	u := &domain.DashboardUpdate{PipelineSteps: res.Steps}
	for _, a := range res.Agents {
		u.AgentsInvoked = append(u.AgentsInvoked, string(a))
		if a == domain.AgentDrafter {
			u.NewDocuments = 1
		}
	}
	if slices.Contains(res.Agents, domain.AgentStrategist) {
		u.NewTasks = len(openCheckItem.FindAllStringIndex(res.Reply, -1))
	}
	if m := eventLine.FindStringSubmatch(res.Reply); m != nil {
		kind := strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:])
		desc := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[2]), "**"))
		if desc != "" {
			u.EventAdded = kind + ": " + desc
		}
	}
	if matter != nil {
		u.MatterID = matter.ID
	}
	return u
}
