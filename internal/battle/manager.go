package battle

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
)

// ErrSessionExists is returned when a session is started twice for the same
// battle; the lifecycle guarantees a battle reaches `active` only once, so
// this indicates a caller bug.
var ErrSessionExists = errors.New("session already exists for battle")

// Manager owns one Session per active battle. Sessions for different battles
// share no mutable state, so operations on distinct battles run fully in
// parallel; the map lock is held only for registration and lookup.
type Manager struct {
	sessions    map[uuid.UUID]*Session
	broadcaster Broadcaster
	mu          sync.RWMutex
}

func NewManager(broadcaster Broadcaster) *Manager {
	return &Manager{
		sessions:    make(map[uuid.UUID]*Session),
		broadcaster: broadcaster,
	}
}

// StartSession creates and registers the session for a battle that just
// transitioned to active, and arms the completion timer. onExpire runs once
// the duration elapses; it races safely against explicit completion and
// cancellation because settlement is serialized inside the session.
func (m *Manager) StartSession(b *domain.Battle, onExpire func(battleID uuid.UUID)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[b.ID]; exists {
		return nil, ErrSessionExists
	}

	session := newSession(b, m.broadcaster)
	session.timer = time.AfterFunc(time.Duration(b.DurationSeconds)*time.Second, func() {
		onExpire(b.ID)
	})
	m.sessions[b.ID] = session

	log.Printf("Started battle session %s (%s, %ds)", b.ID, b.ExerciseType, b.DurationSeconds)
	return session, nil
}

// Get returns the live session for a battle, if any.
func (m *Manager) Get(battleID uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[battleID]
	return session, ok
}

// Remove drops a settled session and stops its timer in case settlement came
// from a path other than expiry.
func (m *Manager) Remove(battleID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[battleID]; ok {
		if session.timer != nil {
			session.timer.Stop()
		}
		delete(m.sessions, battleID)
	}
}

// Stop tears down all sessions. Used on shutdown so no stale timer fires into
// a torn-down service.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		if session.timer != nil {
			session.timer.Stop()
		}
		delete(m.sessions, id)
	}
}
