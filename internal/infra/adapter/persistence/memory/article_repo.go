package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"storywire/internal/domain/entity"
)

// ArticleRepo is an in-memory repository.ArticleRepository.
type ArticleRepo struct {
	mu    sync.RWMutex
	byID  map[string]*entity.Article
	bySeq []*entity.Article
	seq   int64
}

// NewArticleRepo creates an empty article store.
func NewArticleRepo() *ArticleRepo {
	return &ArticleRepo{byID: make(map[string]*entity.Article)}
}

// Ping always succeeds.
func (r *ArticleRepo) Ping(context.Context) error { return nil }

// Insert implements repository.ArticleRepository.
func (r *ArticleRepo) Insert(_ context.Context, article *entity.Article) (bool, error) {
	if article == nil || article.ID == "" {
		return false, fmt.Errorf("Insert: %w", entity.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[article.ID]; exists {
		return false, nil
	}
	r.seq++
	article.Seq = r.seq
	stored := cloneArticle(article)
	r.byID[article.ID] = stored
	r.bySeq = append(r.bySeq, stored)
	return true, nil
}

// Get implements repository.ArticleRepository.
func (r *ArticleRepo) Get(_ context.Context, id string) (*entity.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("Get %s: %w", id, entity.ErrNotFound)
	}
	return cloneArticle(a), nil
}

// GetMany implements repository.ArticleRepository.
func (r *ArticleRepo) GetMany(_ context.Context, ids []string) ([]*entity.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.byID[id]; ok {
			out = append(out, cloneArticle(a))
		}
	}
	return out, nil
}

// MarkProcessed implements repository.ArticleRepository.
func (r *ArticleRepo) MarkProcessed(_ context.Context, id, storyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("MarkProcessed %s: %w", id, entity.ErrNotFound)
	}
	a.Processed = true
	a.StoryID = storyID
	return nil
}

// IncrementAttempts implements repository.ArticleRepository.
func (r *ArticleRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return 0, fmt.Errorf("IncrementAttempts %s: %w", id, entity.ErrNotFound)
	}
	a.ProcessingAttempts++
	return a.ProcessingAttempts, nil
}

// ChangesSince implements repository.ArticleRepository.
// Articles are only ever appended, so bySeq is already ordered.
func (r *ArticleRepo) ChangesSince(_ context.Context, afterSeq int64, limit int) ([]*entity.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := sort.Search(len(r.bySeq), func(i int) bool { return r.bySeq[i].Seq > afterSeq })
	end := len(r.bySeq)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]*entity.Article, 0, end-start)
	for _, a := range r.bySeq[start:end] {
		out = append(out, cloneArticle(a))
	}
	return out, nil
}

// Unprocessed implements repository.ArticleRepository.
func (r *ArticleRepo) Unprocessed(_ context.Context, throughSeq int64, maxAttempts, limit int) ([]*entity.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Article, 0)
	for _, a := range r.bySeq {
		if a.Seq > throughSeq || (limit > 0 && len(out) >= limit) {
			break
		}
		if a.Processed || a.ProcessingAttempts >= maxAttempts {
			continue
		}
		out = append(out, cloneArticle(a))
	}
	return out, nil
}

// Len returns the number of stored articles.
func (r *ArticleRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func cloneArticle(a *entity.Article) *entity.Article {
	c := *a
	c.Entities = append([]string(nil), a.Entities...)
	c.Embedding = append([]float32(nil), a.Embedding...)
	return &c
}
