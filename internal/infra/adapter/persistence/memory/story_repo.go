package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storywire/internal/domain/entity"
	"storywire/internal/repository"
	"storywire/internal/utils/vecmath"
)

// StoryRepo is an in-memory repository.StoryRepository with version checks.
type StoryRepo struct {
	mu      sync.RWMutex
	stories map[string]*entity.Story
	seq     int64
}

// NewStoryRepo creates an empty story store.
func NewStoryRepo() *StoryRepo {
	return &StoryRepo{stories: make(map[string]*entity.Story)}
}

// Ping always succeeds.
func (r *StoryRepo) Ping(context.Context) error { return nil }

// Create implements repository.StoryRepository.
func (r *StoryRepo) Create(_ context.Context, story *entity.Story) error {
	if story == nil || story.ID == "" {
		return fmt.Errorf("Create: %w", entity.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stories[story.ID]; exists {
		return fmt.Errorf("Create %s: %w", story.ID, repository.ErrAlreadyExists)
	}
	r.seq++
	story.Version = 1
	story.Seq = r.seq
	r.stories[story.ID] = story.Clone()
	return nil
}

// Update implements repository.StoryRepository.
func (r *StoryRepo) Update(_ context.Context, story *entity.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.stories[story.ID]
	if !ok {
		return fmt.Errorf("Update %s: %w", story.ID, entity.ErrNotFound)
	}
	if cur.Version != story.Version {
		return fmt.Errorf("Update %s (have %d, want %d): %w", story.ID, story.Version, cur.Version, repository.ErrVersionConflict)
	}
	r.seq++
	story.Version++
	story.Seq = r.seq
	r.stories[story.ID] = story.Clone()
	return nil
}

// Get implements repository.StoryRepository.
func (r *StoryRepo) Get(_ context.Context, id string) (*entity.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stories[id]
	if !ok {
		return nil, fmt.Errorf("Get %s: %w", id, entity.ErrNotFound)
	}
	return s.Clone(), nil
}

// FindByFingerprint implements repository.StoryRepository.
func (r *StoryRepo) FindByFingerprint(_ context.Context, category, fingerprint string, since time.Time) ([]*entity.Story, error) {
	return r.filter(category, since, 0, func(s *entity.Story) bool {
		return s.EventFingerprint == fingerprint
	}), nil
}

// ListRecent implements repository.StoryRepository.
func (r *StoryRepo) ListRecent(_ context.Context, category string, since time.Time, limit int) ([]*entity.Story, error) {
	return r.filter(category, since, limit, nil), nil
}

// NearestByCentroid implements repository.StoryRepository.
func (r *StoryRepo) NearestByCentroid(_ context.Context, category string, vec []float32, since time.Time, limit int) ([]repository.ScoredStory, error) {
	candidates := r.filter(category, since, 0, func(s *entity.Story) bool {
		return len(s.Centroid) > 0 && len(s.Centroid) == len(vec)
	})
	out := make([]repository.ScoredStory, 0, len(candidates))
	for _, s := range candidates {
		out = append(out, repository.ScoredStory{Story: s, Similarity: vecmath.Cosine(vec, s.Centroid)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ChangesSince implements repository.StoryRepository.
func (r *StoryRepo) ChangesSince(_ context.Context, afterSeq int64, limit int) ([]*entity.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Story
	for _, s := range r.stories {
		if s.Seq > afterSeq {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored story ordered by id.
func (r *StoryRepo) All() []*entity.Story {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Story, 0, len(r.stories))
	for _, s := range r.stories {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// filter returns matching stories in category updated at or after since,
// newest LastUpdated first.
func (r *StoryRepo) filter(category string, since time.Time, limit int, keep func(*entity.Story) bool) []*entity.Story {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Story
	for _, s := range r.stories {
		if s.Category != category || s.LastUpdated.Before(since) {
			continue
		}
		if keep != nil && !keep(s) {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
