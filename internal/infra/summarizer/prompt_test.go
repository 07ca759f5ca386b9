package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"storywire/internal/usecase/summarize"
	"storywire/internal/utils/text"
)

func TestBuildPrompt(t *testing.T) {
	req := summarize.Request{
		Title:          "Dam Breach Floods Town",
		Category:       "world",
		CharacterLimit: 300,
		Excerpts: []summarize.Excerpt{
			{Source: "reuters", Title: "Dam Breach Floods Town", Content: "Water poured through overnight."},
			{Source: "ap", Title: "Dam Fails"},
		},
	}

	got := buildPrompt(req, 0)

	assert.Contains(t, got, "at most 300 characters")
	assert.Contains(t, got, "Story: Dam Breach Floods Town\nCategory: world\n")
	assert.Contains(t, got, "[1] Dam Breach Floods Town (reuters)\nWater poured through overnight.\n")
	assert.Contains(t, got, "[2] Dam Fails (ap)\n")
}

func TestBuildPrompt_Truncates(t *testing.T) {
	req := summarize.Request{
		Title:    "Long",
		Excerpts: []summarize.Excerpt{{Source: "s", Title: "t", Content: strings.Repeat("word ", 1000)}},
	}

	got := buildPrompt(req, 500)

	assert.True(t, strings.HasSuffix(got, truncationMarker))
	assert.Equal(t, 500+text.CountRunes(truncationMarker), text.CountRunes(got))
}
