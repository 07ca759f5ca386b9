package summarize_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywire/internal/domain/entity"
	"storywire/internal/infra/adapter/persistence/memory"
	"storywire/internal/usecase/summarize"
)

type recordingSummarizer struct {
	requests []summarize.Request
	resp     *summarize.Response
	err      error
}

func (s *recordingSummarizer) Summarize(_ context.Context, req summarize.Request) (*summarize.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, s summarize.Summarizer) (*summarize.Handler, *memory.SummaryRepo) {
	t.Helper()
	articles := memory.NewArticleRepo()
	for _, a := range []*entity.Article{
		{ID: "a1", Source: "reuters", Title: "Dam Breach Floods Town", URL: "https://reuters.example.com/a1", Content: "Water poured through the breach overnight.", Category: "world"},
		{ID: "a2", Source: "bbc", Title: "Town Flooded After Dam Breach", URL: "https://bbc.example.com/a2", Description: "Residents were evacuated.", Category: "world"},
	} {
		_, err := articles.Insert(context.Background(), a)
		require.NoError(t, err)
	}
	summaries := memory.NewSummaryRepo()
	h := summarize.NewHandler(articles, summaries, s, summarize.DefaultConfig(), nil).
		WithClock(func() time.Time { return fixedNow })
	return h, summaries
}

func story(level int) *entity.Story {
	st := &entity.Story{ID: "s1", Category: "world", Title: "Dam Breach Floods Town", VerificationLevel: level}
	members := []entity.SourceArticle{
		{ArticleID: "a1", Source: "reuters", Title: "Dam Breach Floods Town"},
		{ArticleID: "a2", Source: "bbc", Title: "Town Flooded After Dam Breach"},
		{ArticleID: "missing", Source: "ap", Title: "Dam Fails"},
	}
	st.SourceArticles = members[:level]
	return st
}

func TestHandle_SummarizesCorroboratedStory(t *testing.T) {
	s := &recordingSummarizer{resp: &summarize.Response{Text: "A dam failed.", Model: "test-model", InputTokens: 120, OutputTokens: 12}}
	h, summaries := setup(t, s)

	require.NoError(t, h.Handle(context.Background(), story(2)))

	require.Len(t, s.requests, 1)
	req := s.requests[0]
	assert.Equal(t, "s1", req.StoryID)
	assert.Equal(t, 900, req.CharacterLimit)
	require.Len(t, req.Excerpts, 2)
	assert.Equal(t, "Water poured through the breach overnight.", req.Excerpts[0].Content)
	assert.Equal(t, "Residents were evacuated.", req.Excerpts[1].Content)

	got, err := summaries.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, &entity.StorySummary{
		StoryID: "s1", Text: "A dam failed.", SourceCount: 2, Model: "test-model",
		InputTokens: 120, OutputTokens: 12, GeneratedAt: fixedNow,
	}, got)
}

func TestHandle_SkipsSingleSourceStory(t *testing.T) {
	s := &recordingSummarizer{resp: &summarize.Response{Text: "x"}}
	h, _ := setup(t, s)

	require.NoError(t, h.Handle(context.Background(), story(1)))

	assert.Empty(t, s.requests)
}

func TestHandle_SkipsWhenSummaryCurrent(t *testing.T) {
	s := &recordingSummarizer{resp: &summarize.Response{Text: "x"}}
	h, _ := setup(t, s)

	require.NoError(t, h.Handle(context.Background(), story(2)))
	require.NoError(t, h.Handle(context.Background(), story(2)))
	assert.Len(t, s.requests, 1)

	// A new source refreshes the summary; the missing member keeps its title only.
	require.NoError(t, h.Handle(context.Background(), story(3)))
	require.Len(t, s.requests, 2)
	last := s.requests[1].Excerpts[2]
	assert.Equal(t, "Dam Fails", last.Title)
	assert.Empty(t, last.Content)
}

func TestHandle_SummarizerFailure(t *testing.T) {
	boom := errors.New("provider down")
	h, summaries := setup(t, &recordingSummarizer{err: boom})

	err := h.Handle(context.Background(), story(2))

	require.ErrorIs(t, err, boom)
	got, err := summaries.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandle_EmptySummaryIsError(t *testing.T) {
	h, _ := setup(t, &recordingSummarizer{resp: &summarize.Response{Model: "m"}})

	err := h.Handle(context.Background(), story(2))

	assert.ErrorIs(t, err, summarize.ErrEmptySummary)
}
