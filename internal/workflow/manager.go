package workflow

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
)

// KeyFunc maps a session id to its draft storage key.
type KeyFunc func(sessionID string) string

// Manager hands out one Controller per session. Controllers idle longer than
// the configured duration are forgotten; the draft survives in its store.
type Manager struct {
	client   Client
	drafts   DraftStore
	keyFor   KeyFunc
	observer Observer

	mu       sync.Mutex
	sessions *cache.Cache
}

func NewManager(client Client, drafts DraftStore, keyFor KeyFunc, idle time.Duration, observer Observer) *Manager {
	if idle <= 0 {
		idle = 12 * time.Hour
	}

	sessions := cache.New(idle, idle/4)
	sessions.OnEvicted(func(sessionID string, _ interface{}) {
		log.Debug("Session controller evicted", "session", shortID(sessionID))
	})

	return &Manager{
		client:   client,
		drafts:   drafts,
		keyFor:   keyFor,
		observer: observer,
		sessions: sessions,
	}
}

// Controller returns the session's controller, creating it on first use.
// Every call extends the idle window.
func (m *Manager) Controller(sessionID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value, ok := m.sessions.Get(sessionID); ok {
		controller := value.(*Controller)
		m.sessions.SetDefault(sessionID, controller)
		return controller
	}

	controller := NewController(m.client, m.drafts, m.keyFor(sessionID), m.observer)
	m.sessions.SetDefault(sessionID, controller)
	return controller
}

// Lookup returns an existing controller without creating one.
func (m *Manager) Lookup(sessionID string) (*Controller, bool) {
	value, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return value.(*Controller), true
}

func (m *Manager) Drop(sessionID string) {
	m.sessions.Delete(sessionID)
}

func (m *Manager) Len() int {
	return m.sessions.ItemCount()
}

func shortID(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}
