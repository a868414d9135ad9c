package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

const (
	summaryKey = "lawyrs:dashboard:summary"
	summaryTTL = 24 * time.Hour
)

// SummaryCache stores the dashboard summary in a Redis hash so every
// instance serving the same practice sees one cached value. Merges are
// HINCRBY calls inside MULTI/EXEC, so concurrent instances never lose an
// increment.
type SummaryCache struct {
	rdb goredis.Cmdable
	key string
}

func NewSummaryCache(rdb goredis.Cmdable) *SummaryCache {
	return &SummaryCache{rdb: rdb, key: summaryKey}
}

// LoadSummary returns the zero summary when nothing is cached yet.
func (c *SummaryCache) LoadSummary(ctx context.Context) (domain.DashboardSummary, error) {
	fields, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("failed to load summary: %w", err)
	}
	s, err := fromHash(fields)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	return s.Normalize(), nil
}

func (c *SummaryCache) SaveSummary(ctx context.Context, s domain.DashboardSummary) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, c.key)
		pipe.HSet(ctx, c.key, toHash(s.Normalize()))
		pipe.Expire(ctx, c.key, summaryTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// MergeSummary adds delta to the cached counters in one transaction.
func (c *SummaryCache) MergeSummary(ctx context.Context, delta domain.DashboardSummary) (before, after domain.DashboardSummary, err error) {
	var all *goredis.MapStringStringCmd
	_, err = c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for field, n := range toHash(delta) {
			if n != 0 {
				pipe.HIncrBy(ctx, c.key, field, int64(n))
			}
		}
		pipe.Expire(ctx, c.key, summaryTTL)
		all = pipe.HGetAll(ctx, c.key)
		return nil
	})
	if err != nil {
		return before, after, fmt.Errorf("failed to merge summary: %w", err)
	}

	after, err = fromHash(all.Val())
	if err != nil {
		return before, after, err
	}
	return after.Sub(delta), after, nil
}

func toHash(s domain.DashboardSummary) map[string]int {
	return map[string]int{
		"active_cases":    s.ActiveCases,
		"active_clients":  s.ActiveClients,
		"pending_tasks":   s.PendingTasks,
		"overdue_tasks":   s.OverdueTasks,
		"total_documents": s.TotalDocuments,
		"upcoming_events": s.UpcomingEvents,
	}
}

func fromHash(fields map[string]string) (domain.DashboardSummary, error) {
	var s domain.DashboardSummary
	targets := map[string]*int{
		"active_cases":    &s.ActiveCases,
		"active_clients":  &s.ActiveClients,
		"pending_tasks":   &s.PendingTasks,
		"overdue_tasks":   &s.OverdueTasks,
		"total_documents": &s.TotalDocuments,
		"upcoming_events": &s.UpcomingEvents,
	}
	for field, raw := range fields {
		dst, ok := targets[field]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.DashboardSummary{}, fmt.Errorf("failed to parse summary field %s: %w", field, err)
		}
		*dst = n
	}
	return s, nil
}
