package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// SummaryStore keeps the cached dashboard summary in process memory.
type SummaryStore struct {
	mu      sync.RWMutex
	summary domain.DashboardSummary
}

func NewSummaryStore() *SummaryStore {
	return &SummaryStore{}
}

func (s *SummaryStore) LoadSummary(context.Context) (domain.DashboardSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary, nil
}

func (s *SummaryStore) SaveSummary(_ context.Context, sum domain.DashboardSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = sum
	return nil
}

func (s *SummaryStore) MergeSummary(_ context.Context, delta domain.DashboardSummary) (before, after domain.DashboardSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before = s.summary
	s.summary = s.summary.Add(delta)
	return before, s.summary, nil
}

// PracticeStore is the in-process stand-in for the practice database. It
// answers full dashboard refreshes and records side effects of local agent
// turns.
type PracticeStore struct {
	mu      sync.RWMutex
	summary domain.DashboardSummary
}

func NewPracticeStore(seed domain.DashboardSummary) *PracticeStore {
	return &PracticeStore{summary: seed.Normalize()}
}

func (p *PracticeStore) FetchSummary(context.Context) (domain.DashboardSummary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.summary, nil
}

// Apply records the side effects of one turn.
func (p *PracticeStore) Apply(u domain.DashboardUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u.NewDocuments > 0 {
		p.summary.TotalDocuments += u.NewDocuments
	}
	if u.NewTasks > 0 {
		p.summary.PendingTasks += u.NewTasks
	}
	if u.EventAdded != "" {
		p.summary.UpcomingEvents++
	}
}
