package listener

import (
	"context"
	"sync"

	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// MemoryStore is an in-process Store for single-instance deployments
// and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	listeners map[string]*Listener
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{listeners: make(map[string]*Listener)}
}

func (s *MemoryStore) Put(ctx context.Context, l *Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.listeners[l.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Listener, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listeners[id]
	if !ok {
		return nil, errors.NewNotFoundError("listener not found: " + id)
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Listener, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listeners[id]; !ok {
		return errors.NewNotFoundError("listener not found: " + id)
	}
	delete(s.listeners, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
