package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/repository"
)

// SchedulerConfig bounds what a single cycle may poll.
type SchedulerConfig struct {
	BatchSize int
	Cooldown  time.Duration
}

// DefaultSchedulerConfig returns 20 feeds per batch and a 15 minute cooldown.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{BatchSize: 20, Cooldown: 15 * time.Minute}
}

// Scheduler picks which feeds are due, rotating across categories so that a
// category with many feeds cannot fill a whole batch.
type Scheduler struct {
	mu         sync.Mutex
	categories []string
	byCategory map[string][]entity.FeedConfig
	feedIDs    []string
	state      repository.PollStateRepository
	cfg        SchedulerConfig
	rotation   int
	now        func() time.Time
}

// NewScheduler groups feeds by category. Category order is alphabetical; feeds keep
// their configured order within a category.
func NewScheduler(feeds []entity.FeedConfig, state repository.PollStateRepository, cfg SchedulerConfig) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSchedulerConfig().BatchSize
	}
	s := &Scheduler{
		byCategory: make(map[string][]entity.FeedConfig),
		state:      state,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, f := range feeds {
		if _, ok := s.byCategory[f.Category]; !ok {
			s.categories = append(s.categories, f.Category)
		}
		s.byCategory[f.Category] = append(s.byCategory[f.Category], f)
		s.feedIDs = append(s.feedIDs, f.ID)
	}
	sort.Strings(s.categories)
	return s
}

// WithClock replaces the scheduler's time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Categories returns the category names in rotation order.
func (s *Scheduler) Categories() []string {
	return append([]string(nil), s.categories...)
}

// FeedsToPoll returns up to BatchSize ready feeds.
//
// A feed is ready when it was never polled or its cooldown has elapsed. Within a
// category the least recently polled feed goes first. The rotation pointer advances
// on every step, including steps that land on a category with nothing ready, and
// carries over to the next call.
func (s *Scheduler) FeedsToPoll(ctx context.Context) ([]entity.FeedConfig, error) {
	lastPolls, err := s.state.LastPolls(ctx, s.feedIDs)
	if err != nil {
		return nil, fmt.Errorf("FeedsToPoll: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ready := make(map[string][]entity.FeedConfig, len(s.categories))
	remaining := 0
	for _, cat := range s.categories {
		var due []entity.FeedConfig
		for _, f := range s.byCategory[cat] {
			last, polled := lastPolls[f.ID]
			if !polled || now.Sub(last) >= s.cfg.Cooldown {
				due = append(due, f)
			}
		}
		sort.SliceStable(due, func(i, j int) bool {
			return lastPolls[due[i].ID].Before(lastPolls[due[j].ID])
		})
		ready[cat] = due
		remaining += len(due)
	}

	batch := make([]entity.FeedConfig, 0, min(s.cfg.BatchSize, remaining))
	for len(batch) < s.cfg.BatchSize && remaining > 0 {
		cat := s.categories[s.rotation%len(s.categories)]
		s.rotation = (s.rotation + 1) % len(s.categories)
		if len(ready[cat]) == 0 {
			continue
		}
		batch = append(batch, ready[cat][0])
		ready[cat] = ready[cat][1:]
		remaining--
	}
	return batch, nil
}

// MarkPolled records a poll attempt for feedID.
func (s *Scheduler) MarkPolled(ctx context.Context, feedID string, at time.Time) error {
	if err := s.state.MarkPolled(ctx, feedID, at); err != nil {
		return fmt.Errorf("MarkPolled: %w", err)
	}
	return nil
}
