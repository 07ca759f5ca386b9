package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"storywire/internal/domain/entity"
)

// DefaultFeedLanguage is applied to feeds that omit language.
const DefaultFeedLanguage = "en"

// FeedsFile is the on-disk feed list.
//
//	feeds:
//	  - id: reuters-world
//	    name: Reuters World
//	    url: https://example.com/world.rss
//	    source_id: reuters
//	    category: world
//	    tier: 1
//	    language: en
type FeedsFile struct {
	Feeds []entity.FeedConfig `yaml:"feeds"`
}

// LoadFeeds reads and validates the feed list at path.
// The path is expected to come from a trusted source (command-line flag or environment).
func LoadFeeds(path string) ([]entity.FeedConfig, error) {
	// #nosec G304 -- path is provided by the operator, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}
	feeds, err := ParseFeeds(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return feeds, nil
}

// ParseFeeds decodes a feed list, applies defaults and validates every entry.
// Unknown keys are rejected so typos surface at startup.
func ParseFeeds(data []byte) ([]entity.FeedConfig, error) {
	var file FeedsFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse feeds: %w", err)
	}
	if len(file.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}

	seen := make(map[string]struct{}, len(file.Feeds))
	for i := range file.Feeds {
		f := &file.Feeds[i]
		if f.Language == "" {
			f.Language = DefaultFeedLanguage
		}
		if f.Name == "" {
			f.Name = f.ID
		}
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("feed %d: %w", i, err)
		}
		if _, dup := seen[f.ID]; dup {
			return nil, fmt.Errorf("duplicate feed id %q", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return file.Feeds, nil
}

// FeedsByCategory groups feeds by category, keeping file order within each.
func FeedsByCategory(feeds []entity.FeedConfig) map[string][]entity.FeedConfig {
	out := make(map[string][]entity.FeedConfig)
	for _, f := range feeds {
		out[f.Category] = append(out[f.Category], f)
	}
	return out
}

// Categories returns the sorted distinct categories of feeds.
func Categories(feeds []entity.FeedConfig) []string {
	byCat := FeedsByCategory(feeds)
	cats := make([]string, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}
