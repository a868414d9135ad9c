package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

// Page identifies the view the user currently has open.
type Page string

const (
	PageDashboard Page = "dashboard"
	PageDocuments Page = "documents"
	PageTasks     Page = "tasks"
	PageCalendar  Page = "calendar"
	PageChat      Page = "chat"
)

const EventReconciled = "dashboard.reconciled"

// Action is a navigation shortcut offered by the sync banner.
type Action struct {
	Label string `json:"label"`
	Page  Page   `json:"page"`
}

type BannerItem struct {
	Text   string `json:"text"`
	Action Action `json:"action"`
}

// Banner lists what changed, each entry with a way to go look at it.
type Banner struct {
	Items []BannerItem `json:"items"`
}

// Result describes one reconciliation.
type Result struct {
	Trace            []string
	Before           domain.DashboardSummary
	After            domain.DashboardSummary
	Notification     string
	Banner           *Banner
	RefreshScheduled bool
}

// Reconciler folds reply side effects into the cached summary.
type Reconciler struct {
	cache *Cache
	pub   domain.EventPublisher
	delay time.Duration

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

func NewReconciler(cache *Cache, pub domain.EventPublisher, refreshDelay time.Duration) *Reconciler {
	return &Reconciler{cache: cache, pub: pub, delay: refreshDelay}
}

func (r *Reconciler) Cache() *Cache { return r.cache }

// Reconcile applies u (nil is a no-op) while the user is looking at page.
func (r *Reconciler) Reconcile(ctx context.Context, u *domain.DashboardUpdate, page Page) Result {
	if u == nil {
		return Result{}
	}
	log := observability.LoggerFromContext(ctx).With("page", page)

	res := Result{Trace: Trace(*u)}

	if _, err := r.cache.PrimeIfNeeded(ctx); err != nil {
		log.Warn("priming dashboard before merge failed", "error", err)
	}

	before, after, err := r.cache.Merge(ctx, *u)
	if err != nil {
		log.Warn("dashboard merge failed", "error", err)
	}
	res.Before, res.After = before, after

	res.Notification = notification(*u)
	res.Banner = banner(*u)

	if res.Notification != "" && affects(*u, page) {
		res.RefreshScheduled = r.scheduleRefresh()
	}

	log.Info("dashboard reconciled",
		"new_documents", u.NewDocuments,
		"new_tasks", u.NewTasks,
		"event_added", u.EventAdded != "",
		"refresh_scheduled", res.RefreshScheduled,
	)

	if r.pub != nil && res.Notification != "" {
		payload := map[string]any{
			"new_documents": max(u.NewDocuments, 0),
			"new_tasks":     max(u.NewTasks, 0),
			"event_added":   u.EventAdded,
			"matter_id":     u.MatterID,
			"summary":       after,
		}
		if err := r.pub.Publish(ctx, EventReconciled, payload); err != nil {
			log.Warn("publishing reconcile event failed", "error", err)
		}
	}
	return res
}

// scheduleRefresh arms a single delayed refresh, replacing any pending one.
func (r *Reconciler) scheduleRefresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if r.pending != nil {
		r.pending.Stop()
	}
	r.pending = time.AfterFunc(r.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := r.cache.Refresh(ctx); err != nil {
			observability.Logger().Warn("delayed dashboard refresh failed", "error", err)
		}
	})
	return true
}

// Close cancels any pending refresh.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

// Trace renders the pipeline steps and invoked agents as display lines.
func Trace(u domain.DashboardUpdate) []string {
	var out []string
	for i, step := range u.PipelineSteps {
		if step = strings.TrimSpace(step); step != "" {
			out = append(out, fmt.Sprintf("%d. %s", i+1, step))
		}
	}
	var agents []string
	for _, a := range u.AgentsInvoked {
		if a = strings.TrimSpace(a); a != "" {
			agents = append(agents, domain.ParseAgentType(a).Label())
		}
	}
	if len(agents) > 0 {
		out = append(out, "Agents: "+strings.Join(agents, ", "))
	}
	return out
}

func notification(u domain.DashboardUpdate) string {
	var parts []string
	if u.NewDocuments > 0 {
		parts = append(parts, plural(u.NewDocuments, "new document", "new documents"))
	}
	if u.NewTasks > 0 {
		parts = append(parts, plural(u.NewTasks, "new task", "new tasks"))
	}
	if u.EventAdded != "" {
		parts = append(parts, "event added: "+u.EventAdded)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Dashboard updated: " + strings.Join(parts, ", ")
}

func banner(u domain.DashboardUpdate) *Banner {
	var items []BannerItem
	if u.NewDocuments > 0 {
		items = append(items, BannerItem{
			Text:   plural(u.NewDocuments, "document saved", "documents saved"),
			Action: Action{Label: "View documents", Page: PageDocuments},
		})
	}
	if u.NewTasks > 0 {
		items = append(items, BannerItem{
			Text:   plural(u.NewTasks, "task created", "tasks created"),
			Action: Action{Label: "View tasks", Page: PageTasks},
		})
	}
	if u.EventAdded != "" {
		items = append(items, BannerItem{
			Text:   u.EventAdded,
			Action: Action{Label: "Open calendar", Page: PageCalendar},
		})
	}
	if len(items) == 0 {
		return nil
	}
	return &Banner{Items: items}
}

// affects reports whether page shows data touched by u.
func affects(u domain.DashboardUpdate, page Page) bool {
	switch page {
	case PageDashboard:
		return true
	case PageDocuments:
		return u.NewDocuments > 0
	case PageTasks:
		return u.NewTasks > 0
	case PageCalendar:
		return u.EventAdded != ""
	}
	return false
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
