package sessions

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for tests and single-node
// deployments without Redis.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: map[string]*Session{}}
}

func (r *MemoryRepository) Create(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.store[s.Token] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, token string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.store[token]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		r.mu.Lock()
		delete(r.store, token)
		r.mu.Unlock()
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, token)
	return nil
}
