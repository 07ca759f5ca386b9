package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywire/internal/domain/entity"
)

const validFeeds = `feeds:
  - id: reuters-world
    name: Reuters World
    url: https://reuters.example.com/world.rss
    source_id: reuters
    category: world
    tier: 1
  - id: bbc-science
    url: https://bbc.example.com/science.rss
    source_id: bbc
    category: science
    tier: 2
    language: en-GB
  - id: ap-world
    name: AP World
    url: https://ap.example.com/world.rss
    source_id: ap
    category: world
    tier: 1
`

func TestLoadFeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validFeeds), 0o600))

	feeds, err := LoadFeeds(path)

	require.NoError(t, err)
	require.Len(t, feeds, 3)
	assert.Equal(t, entity.FeedConfig{
		ID: "reuters-world", Name: "Reuters World", URL: "https://reuters.example.com/world.rss",
		SourceID: "reuters", Category: "world", Tier: 1, Language: DefaultFeedLanguage,
	}, feeds[0])
	assert.Equal(t, "bbc-science", feeds[1].Name)
	assert.Equal(t, "en-GB", feeds[1].Language)
}

func TestLoadFeeds_MissingFile(t *testing.T) {
	_, err := LoadFeeds(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read feeds file")
}

func TestParseFeeds_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty list", "feeds: []\n", "no feeds configured"},
		{"unknown key", "feeds:\n  - id: a\n    urll: x\n", "failed to parse feeds"},
		{"missing category", "feeds:\n  - id: a\n    url: https://a.example.com/rss\n    source_id: a\n    tier: 1\n", "category is required"},
		{"bad tier", "feeds:\n  - id: a\n    url: https://a.example.com/rss\n    source_id: a\n    category: world\n    tier: 0\n", "tier must be >= 1"},
		{"bad url", "feeds:\n  - id: a\n    url: ftp://a.example.com/rss\n    source_id: a\n    category: world\n    tier: 1\n", "feed 0"},
		{"duplicate id", "feeds:\n" +
			"  - {id: a, url: 'https://a.example.com/rss', source_id: a, category: world, tier: 1}\n" +
			"  - {id: a, url: 'https://b.example.com/rss', source_id: b, category: world, tier: 1}\n",
			`duplicate feed id "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFeeds([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFeedsByCategory(t *testing.T) {
	feeds, err := ParseFeeds([]byte(validFeeds))
	require.NoError(t, err)

	byCat := FeedsByCategory(feeds)

	require.Len(t, byCat["world"], 2)
	assert.Equal(t, "reuters-world", byCat["world"][0].ID)
	assert.Equal(t, "ap-world", byCat["world"][1].ID)
	assert.Equal(t, []string{"science", "world"}, Categories(feeds))
}
