package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests and local development.
// It honors the same compare-and-swap contract as the Postgres store.
type MemStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[uuid.UUID]*Record)}
}

func (s *MemStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.AccountID]; exists {
		return ErrRecordExists
	}
	s.records[rec.AccountID] = rec.Clone()
	return nil
}

func (s *MemStore) Get(_ context.Context, accountID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[accountID]
	if !exists {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemStore) GetByCustomerRef(_ context.Context, ref string) (*Record, error) {
	if ref == "" {
		return nil, ErrRecordNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ExternalCustomerRef == ref {
			return rec.Clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MemStore) Save(_ context.Context, rec *Record, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.records[rec.AccountID]
	if !exists {
		return ErrRecordNotFound
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return ErrPersistenceConflict
	}
	s.records[rec.AccountID] = rec.Clone()
	return nil
}

func (s *MemStore) Delete(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[accountID]; !exists {
		return ErrRecordNotFound
	}
	delete(s.records, accountID)
	return nil
}
