package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/PabloGalante/lawyrs-chat/internal/adapters/storage/redis"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

func newCache(t *testing.T) (*redisstore.SummaryCache, *miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisstore.NewSummaryCache(rdb), mr, rdb
}

var seeded = domain.DashboardSummary{ActiveCases: 12, ActiveClients: 9, PendingTasks: 5, TotalDocuments: 40, UpcomingEvents: 3}

func TestLoadEmptyIsZero(t *testing.T) {
	cache, _, _ := newCache(t)

	got, err := cache.LoadSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	cache, mr, _ := newCache(t)

	require.NoError(t, cache.SaveSummary(ctx, seeded))
	got, err := cache.LoadSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, seeded, got)

	lower := seeded
	lower.PendingTasks = 1
	require.NoError(t, cache.SaveSummary(ctx, lower))
	got, err = cache.LoadSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, lower, got, "a save replaces the whole summary")

	mr.FastForward(25 * time.Hour)
	got, err = cache.LoadSummary(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "summary expires")
}

func TestMergeReturnsBothSides(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := newCache(t)
	require.NoError(t, cache.SaveSummary(ctx, seeded))

	before, after, err := cache.MergeSummary(ctx, domain.DashboardSummary{PendingTasks: 2, UpcomingEvents: 1})
	require.NoError(t, err)
	assert.Equal(t, seeded, before)
	assert.Equal(t, seeded.PendingTasks+2, after.PendingTasks)
	assert.Equal(t, seeded.UpcomingEvents+1, after.UpcomingEvents)
	assert.Equal(t, seeded.TotalDocuments, after.TotalDocuments)
}

func TestConcurrentMergesFromTwoClientsAddUp(t *testing.T) {
	ctx := context.Background()
	first, mr, _ := newCache(t)
	require.NoError(t, first.SaveSummary(ctx, seeded))

	other := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	second := redisstore.NewSummaryCache(other)

	const merges = 200
	var wg sync.WaitGroup
	for i := range merges {
		c := first
		if i%2 == 1 {
			c = second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.MergeSummary(ctx, domain.DashboardSummary{PendingTasks: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := second.LoadSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, seeded.PendingTasks+merges, got.PendingTasks)
}

func TestCorruptFieldIsAnError(t *testing.T) {
	ctx := context.Background()
	cache, _, rdb := newCache(t)
	require.NoError(t, rdb.HSet(ctx, "lawyrs:dashboard:summary", "pending_tasks", "many").Err())

	_, err := cache.LoadSummary(ctx)
	assert.Error(t, err)
}
