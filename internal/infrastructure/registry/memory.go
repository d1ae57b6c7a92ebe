package registry

import (
	"context"
	"sync"
	"time"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"
)

type MemoryRegistry struct {
	sessions map[domain.SessionID]*domain.Session
	mu       sync.RWMutex
}

func NewMemoryRegistry() ports.SessionRegistry {
	return &MemoryRegistry{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (r *MemoryRegistry) Save(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemoryRegistry) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (r *MemoryRegistry) UpdateState(ctx context.Context, id domain.SessionID, state domain.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return domain.ErrSessionNotFound
	}

	session.State = state
	session.LastSeen = time.Now()
	return nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return domain.ErrSessionNotFound
	}

	delete(r.sessions, id)
	return nil
}

func (r *MemoryRegistry) ListActive(ctx context.Context) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.Session
	for _, session := range r.sessions {
		if session.State != domain.SessionClosed {
			copied := *session
			active = append(active, &copied)
		}
	}
	return active, nil
}
