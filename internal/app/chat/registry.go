package chat

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrChatNotFound = errors.New("chat not found")

// Registry keeps the controllers of open chats. A chat id is stable for
// the lifetime of the chat; its session id changes on every clear.
type Registry struct {
	app *AppContext

	mu    sync.RWMutex
	chats map[string]*Controller
}

func NewRegistry(app *AppContext) *Registry {
	return &Registry{app: app, chats: make(map[string]*Controller)}
}

func (r *Registry) App() *AppContext { return r.app }

// Create registers a new controller and returns its chat id.
func (r *Registry) Create() (string, *Controller) {
	id := uuid.NewString()
	c := NewController(r.app)

	r.mu.Lock()
	r.chats[id] = c
	r.mu.Unlock()
	return id, c
}

func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, ErrChatNotFound
	}
	return c, nil
}

// Remove closes and forgets the chat.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.chats[id]
	delete(r.chats, id)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}

// CloseAll tears down every controller.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	chats := r.chats
	r.chats = make(map[string]*Controller)
	r.mu.Unlock()
	for _, c := range chats {
		c.Close()
	}
}
