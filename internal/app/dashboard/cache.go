package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

// Cache owns the process-wide DashboardSummary. It is only changed by a full
// Refresh, which may lower counts, or by Merge, which never does.
type Cache struct {
	mu     sync.Mutex
	store  domain.SummaryStore
	source domain.SummarySource
}

func NewCache(store domain.SummaryStore, source domain.SummarySource) *Cache {
	return &Cache{store: store, source: source}
}

// Snapshot returns the cached summary. A store failure reads as unprimed.
func (c *Cache) Snapshot(ctx context.Context) domain.DashboardSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Primed reports whether the cache holds anything but the zero sentinel.
func (c *Cache) Primed(ctx context.Context) bool {
	return !c.Snapshot(ctx).IsZero()
}

// Refresh replaces the cached value with the authoritative one.
func (c *Cache) Refresh(ctx context.Context) (domain.DashboardSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// PrimeIfNeeded refreshes only when the cache is still the zero sentinel.
func (c *Cache) PrimeIfNeeded(ctx context.Context) (domain.DashboardSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.load(ctx); !cur.IsZero() {
		return cur, nil
	}
	return c.refreshLocked(ctx)
}

// Merge adds the update's increments to the cached value. Negative
// increments count as zero. The addition happens inside the store, so
// instances sharing one store never lose each other's increments.
func (c *Cache) Merge(ctx context.Context, u domain.DashboardUpdate) (before, after domain.DashboardSummary, err error) {
	delta := u.Delta()
	if delta.IsZero() {
		cur := c.Snapshot(ctx)
		return cur, cur, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	before, after, err = c.store.MergeSummary(ctx, delta)
	if err != nil {
		cur := c.load(ctx)
		return cur, cur, fmt.Errorf("merging summary: %w", err)
	}
	return before.Normalize(), after.Normalize(), nil
}

func (c *Cache) refreshLocked(ctx context.Context) (domain.DashboardSummary, error) {
	fresh, err := c.source.FetchSummary(ctx)
	if err != nil {
		return c.load(ctx), fmt.Errorf("fetching summary: %w", err)
	}
	fresh = fresh.Normalize()
	if err := c.store.SaveSummary(ctx, fresh); err != nil {
		return fresh, fmt.Errorf("saving summary: %w", err)
	}
	return fresh, nil
}

func (c *Cache) load(ctx context.Context) domain.DashboardSummary {
	s, err := c.store.LoadSummary(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("summary cache unreadable", "error", err)
		return domain.DashboardSummary{}
	}
	return s.Normalize()
}
