package chat

import (
	"sync"

	"github.com/PabloGalante/lawyrs-chat/internal/app/dashboard"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
)

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is a transient toast.
type Notification struct {
	Level NotificationLevel `json:"level"`
	Text  string            `json:"text"`
}

// View receives everything the controller wants shown. Implementations must
// be safe for concurrent use and must not call back into the controller.
type View interface {
	TranscriptReset(id domain.SessionID)
	MessageAppended(b Bubble)
	PendingChanged(pending bool)
	StatusChanged(status string)
	SendEnabled(enabled bool)
	Notify(n Notification)
	SyncBanner(trace []string, b *dashboard.Banner)
}

// viewSlot holds the currently attached view. With nothing attached the
// events are dropped; the transcript itself is kept by the controller.
type viewSlot struct {
	mu sync.RWMutex
	v  View
}

func (s *viewSlot) set(v View) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

func (s *viewSlot) with(fn func(View)) {
	s.mu.RLock()
	v := s.v
	s.mu.RUnlock()
	if v != nil {
		fn(v)
	}
}
