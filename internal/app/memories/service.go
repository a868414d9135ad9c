package memories

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

var ErrMissingID = errors.New("memory id is required")

// Source is the slice of the agent backend the browser needs.
type Source interface {
	ListMemories(ctx context.Context) ([]*domain.Memory, error)
	SearchMemories(ctx context.Context, q domain.MemoryQuery) ([]*domain.Memory, error)
	DeleteMemory(ctx context.Context, id domain.MemoryID) error
}

// Service holds the logic of browsing persisted agent memories.
type Service struct {
	src   Source
	limit int
}

// NewService creates a memory browser. limit <= 0 means 100.
func NewService(src Source, limit int) *Service {
	if limit <= 0 {
		limit = 100
	}
	return &Service{src: src, limit: limit}
}

// Entry is one memory ready for display.
type Entry struct {
	ID          domain.MemoryID `json:"id"`
	AgentLabel  string          `json:"agent_label"`
	AgentStyle  string          `json:"agent_style"`
	Key         string          `json:"key"`
	ContentHTML string          `json:"content_html"`
	MatterID    domain.MatterID `json:"matter_id,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// Browse lists memories, searching when q has any filter. The backend
// failing is an error; an empty result is not.
func (s *Service) Browse(ctx context.Context, q domain.MemoryQuery) ([]Entry, error) {
	q.Text = strings.TrimSpace(q.Text)
	log := observability.LoggerFromContext(ctx).With("query_len", len(q.Text), "matter_id", q.MatterID)

	if s.src == nil {
		return []Entry{}, nil
	}

	var (
		list []*domain.Memory
		err  error
	)
	if q.Text == "" && q.MatterID == "" {
		list, err = s.src.ListMemories(ctx)
	} else {
		list, err = s.src.SearchMemories(ctx, q)
	}
	if err != nil {
		log.Error("failed to load memories", "error", err)
		return nil, err
	}

	out := make([]Entry, 0, min(len(list), s.limit))
	for _, m := range list {
		if m == nil {
			continue
		}
		if len(out) == s.limit {
			break
		}
		out = append(out, Format(m))
	}
	log.Info("memories loaded", "count", len(out))
	return out, nil
}

// Delete removes one memory.
func (s *Service) Delete(ctx context.Context, id domain.MemoryID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrMissingID
	}
	if s.src == nil {
		return domain.ErrMemoryNotFound
	}
	if err := s.src.DeleteMemory(ctx, id); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to delete memory", "memory_id", id, "error", err)
		return err
	}
	observability.LoggerFromContext(ctx).Info("memory deleted", "memory_id", id)
	return nil
}

// Format turns a memory into an entry. Content is opaque and only escaped.
func Format(m *domain.Memory) Entry {
	e := Entry{
		ID:          m.ID,
		AgentLabel:  m.Agent.Label(),
		AgentStyle:  m.Agent.Style(),
		Key:         html.EscapeString(m.Key),
		ContentHTML: strings.ReplaceAll(html.EscapeString(m.Content), "\n", "<br>"),
		MatterID:    m.MatterID,
	}
	if !m.CreatedAt.IsZero() {
		e.CreatedAt = m.CreatedAt.UTC().Format(time.DateTime)
	}
	return e
}
