package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// MemoryStore is a simple in-memory implementation of domain.MemoryStore.
// It is NOT persistent and is only suitable for development / local mode.
type MemoryStore struct {
	mu    sync.RWMutex
	items []*domain.Memory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AppendMemory(_ context.Context, m *domain.Memory) error {
	if m == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = domain.MemoryID(uuid.NewString())
	}
	s.items = append(s.items, m)
	return nil
}

// ListMemories returns matches newest first. Text matching is a
// case-insensitive substring search over key and content.
func (s *MemoryStore) ListMemories(_ context.Context, q domain.MemoryQuery, limit int) ([]*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	out := []*domain.Memory{}
	for i := len(s.items) - 1; i >= 0; i-- {
		m := s.items[i]
		if q.MatterID != "" && m.MatterID != q.MatterID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(m.Content), needle) &&
			!strings.Contains(strings.ToLower(m.Key), needle) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteMemory(_ context.Context, id domain.MemoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.items {
		if m.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrMemoryNotFound
}
