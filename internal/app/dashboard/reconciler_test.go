package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lawyrs-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/lawyrs-chat/internal/app/dashboard"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

type fakeSource struct {
	mu      sync.Mutex
	summary domain.DashboardSummary
	err     error
	calls   int
	called  chan struct{}
}

func newFakeSource(s domain.DashboardSummary) *fakeSource {
	return &fakeSource{summary: s, called: make(chan struct{}, 16)}
}

func (f *fakeSource) FetchSummary(context.Context) (domain.DashboardSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.called <- struct{}{}
	return f.summary, f.err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

var primed = domain.DashboardSummary{ActiveCases: 12, ActiveClients: 9, PendingTasks: 5, TotalDocuments: 40, UpcomingEvents: 3}

func newReconciler(t *testing.T, src *fakeSource, pub domain.EventPublisher) *dashboard.Reconciler {
	t.Helper()
	r := dashboard.NewReconciler(dashboard.NewCache(memory.NewSummaryStore(), src), pub, 10*time.Millisecond)
	t.Cleanup(r.Close)
	return r
}

func TestMergeIsMonotonic(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(primed)
	cache := dashboard.NewCache(memory.NewSummaryStore(), src)
	_, err := cache.Refresh(ctx)
	require.NoError(t, err)

	updates := []domain.DashboardUpdate{
		{NewDocuments: 1},
		{NewTasks: 2, EventAdded: "Deposition"},
		{NewDocuments: 3, NewTasks: -4},
		{},
	}
	wantDocs, wantTasks, wantEvents := primed.TotalDocuments, primed.PendingTasks, primed.UpcomingEvents
	for _, u := range updates {
		before, after, err := cache.Merge(ctx, u)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, after.TotalDocuments, before.TotalDocuments)
		assert.GreaterOrEqual(t, after.PendingTasks, before.PendingTasks)

		wantDocs += max(u.NewDocuments, 0)
		wantTasks += max(u.NewTasks, 0)
		if u.EventAdded != "" {
			wantEvents++
		}
	}

	got := cache.Snapshot(ctx)
	assert.Equal(t, wantDocs, got.TotalDocuments)
	assert.Equal(t, wantTasks, got.PendingTasks)
	assert.Equal(t, wantEvents, got.UpcomingEvents)
	assert.Equal(t, primed.ActiveCases, got.ActiveCases)
}

// slowStore widens the window between reading and writing the summary, the
// way a network round trip to a shared cache does.
type slowStore struct {
	*memory.SummaryStore
}

func (s slowStore) LoadSummary(ctx context.Context) (domain.DashboardSummary, error) {
	time.Sleep(50 * time.Microsecond)
	return s.SummaryStore.LoadSummary(ctx)
}

func TestConcurrentMergesAcrossInstancesAddUp(t *testing.T) {
	ctx := context.Background()
	shared := slowStore{memory.NewSummaryStore()}
	src := newFakeSource(primed)
	src.called = make(chan struct{}, 4)

	a := dashboard.NewCache(shared, src)
	b := dashboard.NewCache(shared, src)
	_, err := a.Refresh(ctx)
	require.NoError(t, err)

	const merges = 1000
	var wg sync.WaitGroup
	for i := range merges {
		c := a
		if i%2 == 1 {
			c = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Merge(ctx, domain.DashboardUpdate{NewTasks: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, primed.PendingTasks+merges, a.Snapshot(ctx).PendingTasks)
	assert.Equal(t, primed.PendingTasks+merges, b.Snapshot(ctx).PendingTasks)
}

func TestRefreshMayLowerCounts(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(primed)
	cache := dashboard.NewCache(memory.NewSummaryStore(), src)
	_, err := cache.Refresh(ctx)
	require.NoError(t, err)
	_, _, err = cache.Merge(ctx, domain.DashboardUpdate{NewTasks: 10})
	require.NoError(t, err)

	lower := primed
	lower.PendingTasks = 1
	src.summary = lower

	got, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PendingTasks)
	assert.Equal(t, lower, cache.Snapshot(ctx))
}

func TestReconcilePrimesUnprimedCache(t *testing.T) {
	src := newFakeSource(primed)
	r := newReconciler(t, src, nil)

	res := r.Reconcile(context.Background(), &domain.DashboardUpdate{NewDocuments: 1}, dashboard.PageChat)

	assert.Equal(t, 1, src.Calls(), "synchronous prime")
	assert.Equal(t, primed, res.Before)
	assert.Equal(t, primed.TotalDocuments+1, res.After.TotalDocuments)
	assert.False(t, res.RefreshScheduled, "chat page is not affected")
}

func TestReconcileScenarioTasksAndEvent(t *testing.T) {
	src := newFakeSource(primed)
	pub := &recordingPublisher{}
	r := newReconciler(t, src, pub)
	_, err := r.Cache().Refresh(context.Background())
	require.NoError(t, err)

	res := r.Reconcile(context.Background(), &domain.DashboardUpdate{
		PipelineSteps: []string{"Intent classified", "Strategist drafted plan"},
		AgentsInvoked: []string{"strategist", "mystery"},
		NewTasks:      2,
		EventAdded:    "Deposition scheduled",
	}, dashboard.PageChat)

	assert.Equal(t, primed.PendingTasks+2, res.After.PendingTasks)
	assert.Equal(t, primed.UpcomingEvents+1, res.After.UpcomingEvents)
	assert.Equal(t, []string{"1. Intent classified", "2. Strategist drafted plan", "Agents: Strategist, Agent"}, res.Trace)
	assert.Equal(t, "Dashboard updated: 2 new tasks, event added: Deposition scheduled", res.Notification)

	require.NotNil(t, res.Banner)
	require.Len(t, res.Banner.Items, 2)
	assert.Equal(t, "2 tasks created", res.Banner.Items[0].Text)
	assert.Equal(t, dashboard.PageTasks, res.Banner.Items[0].Action.Page)
	assert.Equal(t, "Deposition scheduled", res.Banner.Items[1].Text)
	assert.Equal(t, dashboard.PageCalendar, res.Banner.Items[1].Action.Page)

	assert.Equal(t, []string{dashboard.EventReconciled}, pub.keys)
}

func TestReconcileSchedulesRefreshOnAffectedPage(t *testing.T) {
	src := newFakeSource(primed)
	r := newReconciler(t, src, nil)
	_, err := r.Cache().Refresh(context.Background())
	require.NoError(t, err)
	<-src.called

	res := r.Reconcile(context.Background(), &domain.DashboardUpdate{NewDocuments: 2}, dashboard.PageDocuments)
	require.True(t, res.RefreshScheduled)

	select {
	case <-src.called:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed refresh never ran")
	}
	assert.Eventually(t, func() bool {
		return r.Cache().Snapshot(context.Background()) == primed
	}, 2*time.Second, 5*time.Millisecond, "authoritative value replaces merged bridge")
}

func TestReconcileUnaffectedPageSkipsRefresh(t *testing.T) {
	src := newFakeSource(primed)
	r := newReconciler(t, src, nil)
	_, err := r.Cache().Refresh(context.Background())
	require.NoError(t, err)

	res := r.Reconcile(context.Background(), &domain.DashboardUpdate{NewDocuments: 2}, dashboard.PageTasks)
	assert.False(t, res.RefreshScheduled)

	res = r.Reconcile(context.Background(), &domain.DashboardUpdate{NewDocuments: 2}, dashboard.PageDashboard)
	assert.True(t, res.RefreshScheduled)
}

func TestCloseCancelsPendingRefresh(t *testing.T) {
	src := newFakeSource(primed)
	cache := dashboard.NewCache(memory.NewSummaryStore(), src)
	r := dashboard.NewReconciler(cache, nil, 50*time.Millisecond)
	_, err := cache.Refresh(context.Background())
	require.NoError(t, err)

	res := r.Reconcile(context.Background(), &domain.DashboardUpdate{NewTasks: 1}, dashboard.PageTasks)
	require.True(t, res.RefreshScheduled)
	r.Close()

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, src.Calls())
}

func TestReconcileToleratesEmptyAndFailingSource(t *testing.T) {
	src := newFakeSource(domain.DashboardSummary{})
	src.err = errors.New("backend down")
	r := newReconciler(t, src, nil)

	assert.Equal(t, dashboard.Result{}, r.Reconcile(context.Background(), nil, dashboard.PageDashboard))

	res := r.Reconcile(context.Background(), &domain.DashboardUpdate{}, dashboard.PageDashboard)
	assert.Empty(t, res.Notification)
	assert.Nil(t, res.Banner)
	assert.False(t, res.RefreshScheduled)

	res = r.Reconcile(context.Background(), &domain.DashboardUpdate{NewTasks: 1}, dashboard.PageChat)
	assert.Equal(t, 1, res.After.PendingTasks, "merge still applies on top of the unprimed value")
}
