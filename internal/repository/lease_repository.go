package repository

import (
	"context"
	"time"
)

// Lease is the ownership record of a change-feed consumer group.
type Lease struct {
	Group      string
	Owner      string
	Checkpoint int64
	ExpiresAt  time.Time
}

// LeaseRepository coordinates change-feed consumers.
type LeaseRepository interface {
	// Acquire takes or renews the lease for group until now+ttl.
	// Returns ErrLeaseHeld if a different owner holds an unexpired lease.
	Acquire(ctx context.Context, group, owner string, ttl time.Duration, now time.Time) (*Lease, error)
	// Commit stores checkpoint for group. Returns ErrLeaseLost if owner no longer holds the lease.
	Commit(ctx context.Context, group, owner string, checkpoint int64) error
}

// PollStateRepository records when each feed was last polled.
type PollStateRepository interface {
	// LastPolls returns the last poll time for each known feed id; unknown ids are absent.
	LastPolls(ctx context.Context, feedIDs []string) (map[string]time.Time, error)
	// MarkPolled upserts the last poll time of a feed.
	MarkPolled(ctx context.Context, feedID string, at time.Time) error
}
