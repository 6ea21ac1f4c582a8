package store

import (
	"context"
	"sync"

	"shiftledger/internal/offline/domain"
)

// MemoryStore is an in-memory queue for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.Mutex
	events []*domain.Event
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *e
	m.events = append(m.events, &copied)
	return nil
}

func (m *MemoryStore) Pending(ctx context.Context) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Event, 0, len(m.events))
	for _, e := range m.events {
		if e.Status == domain.StatusPending {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.events {
		if existing.ID == e.ID {
			copied := *e
			m.events[i] = &copied
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.events {
		if existing.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return nil
}
