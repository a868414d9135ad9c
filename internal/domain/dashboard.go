package domain

// DashboardSummary is the cached set of practice-wide counters.
type DashboardSummary struct {
	ActiveCases    int `json:"active_cases"`
	ActiveClients  int `json:"active_clients"`
	PendingTasks   int `json:"pending_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
	TotalDocuments int `json:"total_documents"`
	UpcomingEvents int `json:"upcoming_events"`
}

// IsZero reports the never-primed sentinel.
func (s DashboardSummary) IsZero() bool {
	return s == DashboardSummary{}
}

// Normalize clamps every counter at zero.
func (s DashboardSummary) Normalize() DashboardSummary {
	s.ActiveCases = nonNeg(s.ActiveCases)
	s.ActiveClients = nonNeg(s.ActiveClients)
	s.PendingTasks = nonNeg(s.PendingTasks)
	s.OverdueTasks = nonNeg(s.OverdueTasks)
	s.TotalDocuments = nonNeg(s.TotalDocuments)
	s.UpcomingEvents = nonNeg(s.UpcomingEvents)
	return s
}

// Add returns s with every counter of d added.
func (s DashboardSummary) Add(d DashboardSummary) DashboardSummary {
	s.ActiveCases += d.ActiveCases
	s.ActiveClients += d.ActiveClients
	s.PendingTasks += d.PendingTasks
	s.OverdueTasks += d.OverdueTasks
	s.TotalDocuments += d.TotalDocuments
	s.UpcomingEvents += d.UpcomingEvents
	return s
}

// Sub returns s with every counter of d subtracted.
func (s DashboardSummary) Sub(d DashboardSummary) DashboardSummary {
	s.ActiveCases -= d.ActiveCases
	s.ActiveClients -= d.ActiveClients
	s.PendingTasks -= d.PendingTasks
	s.OverdueTasks -= d.OverdueTasks
	s.TotalDocuments -= d.TotalDocuments
	s.UpcomingEvents -= d.UpcomingEvents
	return s
}

// DashboardUpdate is the side-effect envelope attached to a reply.
type DashboardUpdate struct {
	PipelineSteps []string
	AgentsInvoked []string
	NewDocuments  int
	NewTasks      int
	EventAdded    string
	MatterID      MatterID
}

// Empty reports whether the envelope carries no side effects at all.
func (u DashboardUpdate) Empty() bool {
	return u.NewDocuments <= 0 && u.NewTasks <= 0 && u.EventAdded == "" &&
		len(u.PipelineSteps) == 0 && len(u.AgentsInvoked) == 0
}

// Delta is the counter increment the update stands for. Negative
// increments count as zero.
func (u DashboardUpdate) Delta() DashboardSummary {
	d := DashboardSummary{
		TotalDocuments: nonNeg(u.NewDocuments),
		PendingTasks:   nonNeg(u.NewTasks),
	}
	if u.EventAdded != "" {
		d.UpcomingEvents = 1
	}
	return d
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
