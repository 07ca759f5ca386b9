package fetcher

import (
	"context"
	"sync"

	"storywire/internal/domain/entity"
)

// ValidatorStore keeps the HTTP cache validators of each feed between cycles.
type ValidatorStore interface {
	// Get returns the validators of a feed; unknown feeds yield zero validators.
	Get(ctx context.Context, feedID string) (entity.FeedValidators, error)
	// Put replaces the validators of a feed.
	Put(ctx context.Context, feedID string, v entity.FeedValidators) error
}

// MemoryValidatorStore is a process-local ValidatorStore.
type MemoryValidatorStore struct {
	mu   sync.RWMutex
	vals map[string]entity.FeedValidators
}

// NewMemoryValidatorStore creates an empty store.
func NewMemoryValidatorStore() *MemoryValidatorStore {
	return &MemoryValidatorStore{vals: make(map[string]entity.FeedValidators)}
}

// Get implements ValidatorStore.
func (s *MemoryValidatorStore) Get(_ context.Context, feedID string) (entity.FeedValidators, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vals[feedID], nil
}

// Put implements ValidatorStore.
func (s *MemoryValidatorStore) Put(_ context.Context, feedID string, v entity.FeedValidators) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[feedID] = v
	return nil
}
