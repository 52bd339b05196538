package practice

import (
	"context"
	"sync"
)

// MemStore is an in-memory ContentStore for tests and local development.
type MemStore struct {
	mu    sync.Mutex
	items []Item
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) CreateItem(_ context.Context, item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return item, nil
}

// Items returns a snapshot of everything created, for assertions.
func (s *MemStore) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}
