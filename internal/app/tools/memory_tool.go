package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

// maxMemoryContent caps what one turn stores; memories are reminders, not
// transcripts.
const maxMemoryContent = 600

// MemoryTool uses a domain.MemoryStore to keep what an agent learned about
// a matter across sessions.
type MemoryTool struct {
	store domain.MemoryStore
	now   func() time.Time
}

// NewMemoryTool creates a new MemoryTool.
// store can be an in-memory or Firestore implementation.
func NewMemoryTool(store domain.MemoryStore) *MemoryTool {
	return &MemoryTool{
		store: store,
		now:   time.Now,
	}
}

func (t *MemoryTool) Name() string {
	return "memory_store"
}

// Call expects an input with this shape:
//
//	{
//	  "agent_type": "researcher",
//	  "key": "SOL for slip and fall",
//	  "content": "RSMo 516.120 gives five years..."
//	}
//
// SessionID and MatterID come in ToolContext.
func (t *MemoryTool) Call(
	ctx context.Context,
	tctx ToolContext,
	input map[string]any,
) (map[string]any, error) {

	if tctx.SessionID == "" {
		return nil, fmt.Errorf("memory_store: missing SessionID in ToolContext")
	}

	content := strings.TrimSpace(getString(input, "content"))
	if content == "" {
		return nil, fmt.Errorf("memory_store: empty content")
	}
	if r := []rune(content); len(r) > maxMemoryContent {
		content = string(r[:maxMemoryContent]) + "…"
	}

	m := &domain.Memory{
		ID:        domain.MemoryID(uuid.NewString()),
		MatterID:  domain.MatterID(tctx.MatterID),
		SessionID: domain.SessionID(tctx.SessionID),
		Agent:     domain.ParseAgentType(getString(input, "agent_type")),
		Key:       strings.TrimSpace(getString(input, "key")),
		Content:   content,
		CreatedAt: t.now(),
	}

	if err := t.store.AppendMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("memory_store: append failed: %w", err)
	}

	return map[string]any{
		"status":     "ok",
		"memory_id":  string(m.ID),
		"session_id": string(m.SessionID),
		"matter_id":  string(m.MatterID),
		"created_at": m.CreatedAt,
	}, nil
}

// --- internal helpers --- //

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
