package memories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storemem "github.com/PabloGalante/lawyrs-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/lawyrs-chat/internal/app/memories"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// storeSource adapts the in-memory MemoryStore to the browser's Source.
type storeSource struct {
	store *storemem.MemoryStore
	err   error
}

func (s storeSource) ListMemories(ctx context.Context) ([]*domain.Memory, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.store.ListMemories(ctx, domain.MemoryQuery{}, 0)
}

func (s storeSource) SearchMemories(ctx context.Context, q domain.MemoryQuery) ([]*domain.Memory, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.store.ListMemories(ctx, q, 0)
}

func (s storeSource) DeleteMemory(ctx context.Context, id domain.MemoryID) error {
	return s.store.DeleteMemory(ctx, id)
}

func seeded(t *testing.T) storeSource {
	t.Helper()
	ctx := context.Background()
	st := storemem.NewMemoryStore()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, m := range []*domain.Memory{
		{ID: "a", MatterID: "42", Agent: domain.AgentResearcher, Key: "sol", Content: "Five-year statute of limitations"},
		{ID: "b", MatterID: "7", Agent: domain.AgentDrafter, Key: "letter", Content: "Demand letter <draft>\nsent"},
		{ID: "c", Agent: "paralegal", Key: "note", Content: "misc"},
	} {
		m.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, st.AppendMemory(ctx, m))
	}
	return storeSource{store: st}
}

func TestBrowseListsAndSearches(t *testing.T) {
	ctx := context.Background()
	svc := memories.NewService(seeded(t), 0)

	all, err := svc.Browse(ctx, domain.MemoryQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	hits, err := svc.Browse(ctx, domain.MemoryQuery{Text: "  statute "})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, domain.MemoryID("a"), hits[0].ID)
	assert.Equal(t, "Researcher", hits[0].AgentLabel)

	byMatter, err := svc.Browse(ctx, domain.MemoryQuery{MatterID: "7"})
	require.NoError(t, err)
	require.Len(t, byMatter, 1)
	assert.Equal(t, "Demand letter &lt;draft&gt;<br>sent", byMatter[0].ContentHTML)
}

func TestBrowseLimit(t *testing.T) {
	svc := memories.NewService(seeded(t), 2)
	out, err := svc.Browse(context.Background(), domain.MemoryQuery{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestBrowseBackendError(t *testing.T) {
	svc := memories.NewService(storeSource{err: errors.New("down")}, 0)
	_, err := svc.Browse(context.Background(), domain.MemoryQuery{})
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	src := seeded(t)
	svc := memories.NewService(src, 0)

	assert.ErrorIs(t, svc.Delete(ctx, " "), memories.ErrMissingID)
	require.NoError(t, svc.Delete(ctx, "a"))
	assert.ErrorIs(t, svc.Delete(ctx, "a"), domain.ErrMemoryNotFound)

	left, err := svc.Browse(ctx, domain.MemoryQuery{})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestFormatUnknownAgent(t *testing.T) {
	e := memories.Format(&domain.Memory{ID: "x", Agent: "paralegal", Key: "<k>"})
	assert.Equal(t, "Agent", e.AgentLabel)
	assert.Equal(t, "agent-default", e.AgentStyle)
	assert.Equal(t, "&lt;k&gt;", e.Key)
	assert.Empty(t, e.CreatedAt)
}
