package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/repository"
)

// SummaryRepo is an in-memory repository.SummaryRepository.
type SummaryRepo struct {
	mu        sync.RWMutex
	summaries map[string]entity.StorySummary
}

// NewSummaryRepo creates an empty summary store.
func NewSummaryRepo() *SummaryRepo {
	return &SummaryRepo{summaries: make(map[string]entity.StorySummary)}
}

// Get implements repository.SummaryRepository.
func (r *SummaryRepo) Get(_ context.Context, storyID string) (*entity.StorySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.summaries[storyID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Upsert implements repository.SummaryRepository.
func (r *SummaryRepo) Upsert(_ context.Context, summary *entity.StorySummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[summary.StoryID] = *summary
	return nil
}

// LeaseRepo is an in-memory repository.LeaseRepository.
type LeaseRepo struct {
	mu     sync.Mutex
	leases map[string]repository.Lease
}

// NewLeaseRepo creates an empty lease store.
func NewLeaseRepo() *LeaseRepo {
	return &LeaseRepo{leases: make(map[string]repository.Lease)}
}

// Acquire implements repository.LeaseRepository.
func (r *LeaseRepo) Acquire(_ context.Context, group, owner string, ttl time.Duration, now time.Time) (*repository.Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leases[group]
	if ok && l.Owner != owner && now.Before(l.ExpiresAt) {
		return nil, fmt.Errorf("Acquire %s: %w", group, repository.ErrLeaseHeld)
	}
	l.Group = group
	l.Owner = owner
	l.ExpiresAt = now.Add(ttl)
	r.leases[group] = l
	return &l, nil
}

// Commit implements repository.LeaseRepository.
func (r *LeaseRepo) Commit(_ context.Context, group, owner string, checkpoint int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leases[group]
	if !ok || l.Owner != owner {
		return fmt.Errorf("Commit %s: %w", group, repository.ErrLeaseLost)
	}
	if checkpoint > l.Checkpoint {
		l.Checkpoint = checkpoint
	}
	r.leases[group] = l
	return nil
}

// PollStateRepo is an in-memory repository.PollStateRepository.
type PollStateRepo struct {
	mu    sync.RWMutex
	polls map[string]time.Time
}

// NewPollStateRepo creates an empty poll state store.
func NewPollStateRepo() *PollStateRepo {
	return &PollStateRepo{polls: make(map[string]time.Time)}
}

// LastPolls implements repository.PollStateRepository.
func (r *PollStateRepo) LastPolls(_ context.Context, feedIDs []string) (map[string]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]time.Time, len(feedIDs))
	for _, id := range feedIDs {
		if t, ok := r.polls[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

// MarkPolled implements repository.PollStateRepository.
func (r *PollStateRepo) MarkPolled(_ context.Context, feedID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls[feedID] = at
	return nil
}
