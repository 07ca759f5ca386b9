package fixtures

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywire/internal/domain/entity"
	"storywire/internal/utils/vecmath"
)

func TestNewArticle_Defaults(t *testing.T) {
	a := NewArticle("wire", "Earthquake Strikes Northern Japan")

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, entity.ArticleID("wire", a.URL, BaseTime), a.ID)
	assert.Equal(t, "world", a.Category)
	assert.NotEmpty(t, a.StoryFingerprint)
	assert.False(t, a.Processed)
}

func TestNewArticle_SameEventSharesFingerprint(t *testing.T) {
	a := NewArticle("wire", "Earthquake Strikes Northern Japan")
	b := NewArticle("herald", "Earthquake Strikes Northern Japan", WithTier(1))

	assert.Equal(t, a.StoryFingerprint, b.StoryFingerprint)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, b.IsTopTier())
}

func TestNewArticle_Options(t *testing.T) {
	vec := UnitVector(4, 0)
	a := NewArticle("wire", "Rates Unchanged",
		WithCategory("business"),
		WithPublished(Minutes(30)),
		WithFingerprint("fp"),
		WithEmbedding(vec),
		WithID("fixed"),
	)

	assert.Equal(t, "business", a.Category)
	assert.Equal(t, Minutes(30), a.PublishedAt)
	assert.Equal(t, "fp", a.StoryFingerprint)
	assert.Equal(t, vec, a.Embedding)
	assert.Equal(t, "fixed", a.ID)
}

func TestGenerateBody(t *testing.T) {
	body := GenerateBody(1000)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(body), 1000)
}

func TestStoryFrom(t *testing.T) {
	a := NewArticle("wire", "Port Strike Ends")
	b := NewArticle("herald", "Port Strike Ends", WithPublished(Minutes(20)))

	st := StoryFrom("story-1", a, b)
	require.Len(t, st.SourceArticles, 2)
	assert.Equal(t, 2, st.VerificationLevel)
	assert.Equal(t, 1, st.UpdateCount)
	assert.Equal(t, Minutes(20), st.LastUpdated)
	assert.Equal(t, entity.StatusDeveloping, st.Status)
}

func TestNewFeed(t *testing.T) {
	f := NewFeed("wire-world", "world", WithFeedURL("http://127.0.0.1:1/rss"), WithFeedTier(1))
	require.NoError(t, f.Validate())
	assert.Equal(t, "http://127.0.0.1:1/rss", f.URL)
	assert.Equal(t, 1, f.Tier)
}

/* ───────── vectors ───────── */

func TestNormalizedVector(t *testing.T) {
	vec := NormalizedVector(16, 0.3)
	assert.InDelta(t, 1.0, vecmath.Cosine(vec, vec), 1e-5)
}

func TestBlend(t *testing.T) {
	a, b := UnitVector(4, 0), UnitVector(4, 1)
	assert.InDelta(t, 0.0, vecmath.Cosine(a, b), 1e-6)
	assert.Greater(t, vecmath.Cosine(a, Blend(a, b, 0.2)), vecmath.Cosine(a, Blend(a, b, 0.6)))
}
