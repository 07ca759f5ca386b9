package postgres_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"storywire/internal/domain/entity"
	pg "storywire/internal/infra/adapter/persistence/postgres"
	"storywire/internal/repository"
)

/* ─────────────────────────── helpers ─────────────────────────── */

var storyCols = []string{
	"id", "category", "event_fingerprint", "title", "status", "verification_level",
	"confidence_score", "importance_score", "source_articles", "first_seen", "last_updated",
	"update_count", "breaking_news", "breaking_detected_at", "centroid", "embedding_count",
	"version", "seq",
}

var t0 = time.Date(2025, 7, 19, 6, 0, 0, 0, time.UTC)

func sampleStory() *entity.Story {
	detected := t0.Add(10 * time.Minute)
	return &entity.Story{
		ID: "story_world_20250719060000_fp1", Category: "world", EventFingerprint: "fp1",
		Title: "Earthquake strikes northern Japan", Status: entity.StatusBreaking,
		VerificationLevel: 3, ConfidenceScore: 85, ImportanceScore: 70,
		SourceArticles: []entity.SourceArticle{
			{ArticleID: "a1", Source: "reuters", SourceTier: 1, Title: "t1", URL: "u1", PublishedAt: t0, AddedAt: t0},
			{ArticleID: "a2", Source: "bbc", SourceTier: 1, Title: "t2", URL: "u2", PublishedAt: t0, AddedAt: t0},
			{ArticleID: "a3", Source: "ap", SourceTier: 2, Title: "t3", URL: "u3", PublishedAt: t0, AddedAt: t0},
		},
		FirstSeen: t0, LastUpdated: detected, UpdateCount: 2,
		BreakingNews: true, BreakingDetectedAt: &detected,
		Centroid: []float32{0.5, 0.5}, EmbeddingCount: 2,
		Version: 3, Seq: 9,
	}
}

const sampleSourcesJSON = `[
{"article_id":"a1","source":"reuters","source_tier":1,"title":"t1","url":"u1","published_at":"2025-07-19T06:00:00Z","added_at":"2025-07-19T06:00:00Z"},
{"article_id":"a2","source":"bbc","source_tier":1,"title":"t2","url":"u2","published_at":"2025-07-19T06:00:00Z","added_at":"2025-07-19T06:00:00Z"},
{"article_id":"a3","source":"ap","source_tier":2,"title":"t3","url":"u3","published_at":"2025-07-19T06:00:00Z","added_at":"2025-07-19T06:00:00Z"}]`

func storyRow(s *entity.Story, extra ...driver.Value) *sqlmock.Rows {
	cols := storyCols
	if len(extra) > 0 {
		cols = append(append([]string{}, storyCols...), "similarity")
	}
	var detected driver.Value
	if s.BreakingDetectedAt != nil {
		detected = *s.BreakingDetectedAt
	}
	values := []driver.Value{
		s.ID, s.Category, s.EventFingerprint, s.Title, string(s.Status), s.VerificationLevel,
		s.ConfidenceScore, s.ImportanceScore, []byte(sampleSourcesJSON), s.FirstSeen, s.LastUpdated,
		s.UpdateCount, s.BreakingNews, detected, "[0.5,0.5]", s.EmbeddingCount,
		s.Version, s.Seq,
	}
	return sqlmock.NewRows(cols).AddRow(append(values, extra...)...)
}

func newStoryRepo(t *testing.T) (sqlmock.Sqlmock, *pg.StoryRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return mock, pg.NewStoryRepo(db)
}

/* ─────────────────────────── 1. Create ─────────────────────────── */

func TestStoryRepo_Create(t *testing.T) {
	mock, repo := newStoryRepo(t)
	s := sampleStory()
	s.Version, s.Seq = 0, 0

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO stories")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "seq"}).AddRow(int64(1), int64(5)))

	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if s.Version != 1 || s.Seq != 5 {
		t.Fatalf("Version=%d Seq=%d, want 1/5", s.Version, s.Seq)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoryRepo_Create_AlreadyExists(t *testing.T) {
	mock, repo := newStoryRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING RETURNING version, seq")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "seq"}))

	err := repo.Create(context.Background(), sampleStory())
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("err=%v, want ErrAlreadyExists", err)
	}
}

/* ─────────────────────────── 2. Update ─────────────────────────── */

func TestStoryRepo_Update(t *testing.T) {
	mock, repo := newStoryRepo(t)
	s := sampleStory()

	mock.ExpectQuery(regexp.QuoteMeta("version = version + 1, seq = nextval('stories_seq') WHERE id = $14 AND version = $15 RETURNING version, seq")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "seq"}).AddRow(int64(4), int64(12)))

	if err := repo.Update(context.Background(), s); err != nil {
		t.Fatalf("Update err=%v", err)
	}
	if s.Version != 4 || s.Seq != 12 {
		t.Fatalf("Version=%d Seq=%d, want 4/12", s.Version, s.Seq)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoryRepo_Update_VersionConflict(t *testing.T) {
	mock, repo := newStoryRepo(t)
	s := sampleStory()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stories")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "seq"}))

	err := repo.Update(context.Background(), s)
	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("err=%v, want ErrVersionConflict", err)
	}
	if s.Version != 3 {
		t.Fatalf("Version changed to %d on conflict", s.Version)
	}
}

/* ─────────────────────────── 3. reads ─────────────────────────── */

func TestStoryRepo_Get(t *testing.T) {
	mock, repo := newStoryRepo(t)
	want := sampleStory()

	mock.ExpectQuery(regexp.QuoteMeta("FROM stories WHERE id = $1")).
		WithArgs(want.ID).
		WillReturnRows(storyRow(want))

	got, err := repo.Get(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestStoryRepo_Get_NotFound(t *testing.T) {
	mock, repo := newStoryRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stories")).
		WillReturnRows(sqlmock.NewRows(storyCols))

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestStoryRepo_FindByFingerprint(t *testing.T) {
	mock, repo := newStoryRepo(t)
	since := t0.Add(-6 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE category = $1 AND event_fingerprint = $2 AND last_updated >= $3 ORDER BY last_updated DESC, id")).
		WithArgs("world", "fp1", since).
		WillReturnRows(storyRow(sampleStory()))

	got, err := repo.FindByFingerprint(context.Background(), "world", "fp1", since)
	if err != nil || len(got) != 1 {
		t.Fatalf("FindByFingerprint len=%d err=%v", len(got), err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoryRepo_ListRecent(t *testing.T) {
	mock, repo := newStoryRepo(t)
	since := t0.Add(-6 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE category = $1 AND last_updated >= $2 ORDER BY last_updated DESC, id LIMIT 20")).
		WithArgs("world", since).
		WillReturnRows(storyRow(sampleStory()))

	got, err := repo.ListRecent(context.Background(), "world", since, 20)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListRecent len=%d err=%v", len(got), err)
	}
}

func TestStoryRepo_NearestByCentroid(t *testing.T) {
	mock, repo := newStoryRepo(t)
	since := t0.Add(-6 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("1 - (centroid <=> $1) AS similarity FROM stories")).
		WithArgs("[0.6,0.8]", "world", since, "[0.6,0.8]").
		WillReturnRows(storyRow(sampleStory(), 0.91))

	got, err := repo.NearestByCentroid(context.Background(), "world", []float32{0.6, 0.8}, since, 5)
	if err != nil {
		t.Fatalf("NearestByCentroid err=%v", err)
	}
	if len(got) != 1 || got[0].Similarity != 0.91 || got[0].Story.ID != "story_world_20250719060000_fp1" {
		t.Fatalf("NearestByCentroid got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoryRepo_NearestByCentroid_NoVector(t *testing.T) {
	mock, repo := newStoryRepo(t)
	got, err := repo.NearestByCentroid(context.Background(), "world", nil, t0, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("len=%d err=%v", len(got), err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoryRepo_ChangesSince(t *testing.T) {
	mock, repo := newStoryRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stories WHERE seq > $1 ORDER BY seq LIMIT 100")).
		WithArgs(int64(8)).
		WillReturnRows(storyRow(sampleStory()))

	got, err := repo.ChangesSince(context.Background(), 8, 100)
	if err != nil || len(got) != 1 || got[0].Seq != 9 {
		t.Fatalf("ChangesSince got=%v err=%v", got, err)
	}
}
