package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"storywire/internal/domain/entity"
	pg "storywire/internal/infra/adapter/persistence/postgres"
)

/* ─────────────────────────── helpers ─────────────────────────── */

var articleCols = []string{
	"id", "source", "source_tier", "feed_id", "title", "description", "content", "url",
	"published_at", "fetched_at", "category", "language", "entities", "story_fingerprint",
	"embedding", "processed", "story_id", "processing_attempts", "seq",
}

func artRows() *sqlmock.Rows {
	return sqlmock.NewRows(articleCols)
}

func addArt(rows *sqlmock.Rows, a *entity.Article, entities string, embedding interface{}) *sqlmock.Rows {
	var storyID interface{}
	if a.StoryID != "" {
		storyID = a.StoryID
	}
	return rows.AddRow(
		a.ID, a.Source, a.SourceTier, a.FeedID, a.Title, a.Description, a.Content, a.URL,
		a.PublishedAt, a.FetchedAt, a.Category, a.Language, entities, a.StoryFingerprint,
		embedding, a.Processed, storyID, a.ProcessingAttempts, a.Seq,
	)
}

func sampleArticle(id string) *entity.Article {
	now := time.Date(2025, 7, 19, 6, 0, 0, 0, time.UTC)
	return &entity.Article{
		ID: id, Source: "reuters", SourceTier: 1, FeedID: "reuters-world",
		Title: "Earthquake strikes northern Japan", Description: "desc", Content: "body",
		URL: "https://reuters.example/quake", PublishedAt: now, FetchedAt: now.Add(time.Minute),
		Category: "world", Language: "en", StoryFingerprint: "fp1",
	}
}

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *pg.ArticleRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return mock, func() *pg.ArticleRepo { return pg.NewArticleRepo(db) }
}

/* ─────────────────────────── 1. Insert ─────────────────────────── */

func TestArticleRepo_Insert_New(t *testing.T) {
	mock, repo := newMock(t)
	a := sampleArticle("a1")
	a.Embedding = []float32{0.5, 0.25}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WithArgs("a1", "2025-07-19", "reuters", 1, "reuters-world",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), "world", "en", sqlmock.AnyArg(), "fp1",
			sqlmock.AnyArg(), false, sqlmock.AnyArg(), 0).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(42)))

	inserted, err := repo().Insert(context.Background(), a)
	if err != nil || !inserted {
		t.Fatalf("Insert inserted=%v err=%v", inserted, err)
	}
	if a.Seq != 42 {
		t.Fatalf("Seq=%d, want 42", a.Seq)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_Insert_Duplicate(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING RETURNING seq")).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}))

	inserted, err := repo().Insert(context.Background(), sampleArticle("a1"))
	if err != nil || inserted {
		t.Fatalf("Insert inserted=%v err=%v, want false,nil", inserted, err)
	}
}

func TestArticleRepo_Insert_Invalid(t *testing.T) {
	_, repo := newMock(t)
	if _, err := repo().Insert(context.Background(), &entity.Article{}); !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("err=%v, want ErrInvalidInput", err)
	}
}

/* ─────────────────────────── 2. Get ─────────────────────────── */

func TestArticleRepo_Get(t *testing.T) {
	mock, repo := newMock(t)
	want := sampleArticle("a1")
	want.Entities = []string{"japan", "quake"}
	want.Embedding = []float32{0.5, 0.25}
	want.Processed = true
	want.StoryID = "story_1"
	want.ProcessingAttempts = 1
	want.Seq = 7

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source")).
		WithArgs("a1").
		WillReturnRows(addArt(artRows(), want, "{japan,quake}", "[0.5,0.25]"))

	got, err := repo().Get(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_Get_NotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM articles")).
		WithArgs("missing").
		WillReturnRows(artRows())

	_, err := repo().Get(context.Background(), "missing")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

/* ─────────────────────────── 3. GetMany ─────────────────────────── */

func TestArticleRepo_GetMany_FollowsIDOrder(t *testing.T) {
	mock, repo := newMock(t)
	a1, a2 := sampleArticle("a1"), sampleArticle("a2")

	rows := addArt(artRows(), a2, "{}", nil)
	rows = addArt(rows, a1, "{}", nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).
		WillReturnRows(rows)

	got, err := repo().GetMany(context.Background(), []string{"a1", "missing", "a2"})
	if err != nil {
		t.Fatalf("GetMany err=%v", err)
	}
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Fatalf("GetMany order = %v", got)
	}
}

func TestArticleRepo_GetMany_Empty(t *testing.T) {
	mock, repo := newMock(t)
	got, err := repo().GetMany(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("GetMany len=%d err=%v", len(got), err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ─────────────────────────── 4. processing state ─────────────────────────── */

func TestArticleRepo_MarkProcessed(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET processed = $1, story_id = $2 WHERE id = $3")).
		WithArgs(true, "story_1", "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo().MarkProcessed(context.Background(), "a1", "story_1"); err != nil {
		t.Fatalf("MarkProcessed err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_MarkProcessed_NotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo().MarkProcessed(context.Background(), "gone", "story_1")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestArticleRepo_IncrementAttempts(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SET processing_attempts = processing_attempts + 1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"processing_attempts"}).AddRow(2))

	n, err := repo().IncrementAttempts(context.Background(), "a1")
	if err != nil || n != 2 {
		t.Fatalf("IncrementAttempts n=%d err=%v", n, err)
	}
}

/* ─────────────────────────── 5. ChangesSince ─────────────────────────── */

func TestArticleRepo_ChangesSince(t *testing.T) {
	mock, repo := newMock(t)
	a := sampleArticle("a3")
	a.Seq = 11

	mock.ExpectQuery(regexp.QuoteMeta("WHERE seq > $1 ORDER BY seq LIMIT 50")).
		WithArgs(int64(10)).
		WillReturnRows(addArt(artRows(), a, "{}", nil))

	got, err := repo().ChangesSince(context.Background(), 10, 50)
	if err != nil {
		t.Fatalf("ChangesSince err=%v", err)
	}
	if len(got) != 1 || got[0].Seq != 11 || got[0].Embedding != nil {
		t.Fatalf("ChangesSince got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_Unprocessed(t *testing.T) {
	mock, repo := newMock(t)
	a := sampleArticle("a2")
	a.Seq = 4

	mock.ExpectQuery(regexp.QuoteMeta("WHERE processed = $1 AND seq <= $2 AND processing_attempts < $3 ORDER BY seq LIMIT 100")).
		WithArgs(false, int64(9), 3).
		WillReturnRows(addArt(artRows(), a, "{}", nil))

	got, err := repo().Unprocessed(context.Background(), 9, 3, 100)
	if err != nil {
		t.Fatalf("Unprocessed err=%v", err)
	}
	if len(got) != 1 || got[0].ID != "a2" || got[0].Seq != 4 {
		t.Fatalf("Unprocessed got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_UnprocessedZeroLimit(t *testing.T) {
	_, repo := newMock(t)
	got, err := repo().Unprocessed(context.Background(), 9, 3, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("Unprocessed got %v, %v", got, err)
	}
}
