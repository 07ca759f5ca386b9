package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aiEnvVars = []string{
	"SUMMARIZER_PROVIDER",
	"SUMMARIZER_MODEL",
	"SUMMARIZER_BASE_URL",
	"SUMMARIZER_CHAR_LIMIT",
	"SUMMARIZER_MIN_SOURCES",
	"SUMMARIZER_TIMEOUT",
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
	"EMBEDDING_ENABLED",
	"EMBEDDING_MODEL",
	"EMBEDDING_BASE_URL",
	"EMBEDDING_DIMENSIONS",
	"EMBEDDING_TIMEOUT",
}

// clearAIEnvVars blanks every AI variable for the duration of the test.
func clearAIEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range aiEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoadAIConfig_Defaults(t *testing.T) {
	clearAIEnvVars(t)

	config, err := LoadAIConfig()
	require.NoError(t, err)

	assert.Equal(t, ProviderNoop, config.Summarizer.Provider)
	assert.Equal(t, 900, config.Summarizer.CharacterLimit)
	assert.Equal(t, 2, config.Summarizer.MinSources)
	assert.Equal(t, 60*time.Second, config.Summarizer.Timeout)

	assert.False(t, config.Embedding.Enabled)
	assert.Equal(t, "text-embedding-3-small", config.Embedding.Model)
	assert.Equal(t, 10*time.Second, config.Embedding.Timeout)
}

func TestLoadAIConfig_AutoProvider(t *testing.T) {
	tests := []struct {
		name          string
		anthropic     string
		openai        string
		wantProvider  string
		wantEmbedding bool
	}{
		{"anthropic key wins", "sk-ant", "sk-oai", ProviderClaude, true},
		{"openai only", "", "sk-oai", ProviderOpenAI, true},
		{"claude without embeddings", "sk-ant", "", ProviderClaude, false},
		{"no keys", "", "", ProviderNoop, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAIEnvVars(t)
			t.Setenv("ANTHROPIC_API_KEY", tt.anthropic)
			t.Setenv("OPENAI_API_KEY", tt.openai)

			config, err := LoadAIConfig()

			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, config.Summarizer.Provider)
			assert.Equal(t, tt.wantEmbedding, config.Embedding.Enabled)
		})
	}
}

func TestLoadAIConfig_CustomValues(t *testing.T) {
	clearAIEnvVars(t)
	t.Setenv("SUMMARIZER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	t.Setenv("SUMMARIZER_MODEL", "gpt-4o")
	t.Setenv("SUMMARIZER_CHAR_LIMIT", "1200")
	t.Setenv("SUMMARIZER_MIN_SOURCES", "3")
	t.Setenv("SUMMARIZER_TIMEOUT", "90s")
	t.Setenv("EMBEDDING_ENABLED", "false")
	t.Setenv("EMBEDDING_DIMENSIONS", "256")

	config, err := LoadAIConfig()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, config.Summarizer.Provider)
	assert.Equal(t, "gpt-4o", config.Summarizer.Model)
	assert.Equal(t, 1200, config.Summarizer.CharacterLimit)
	assert.Equal(t, 3, config.Summarizer.MinSources)
	assert.Equal(t, 90*time.Second, config.Summarizer.Timeout)
	assert.False(t, config.Embedding.Enabled)
	assert.Equal(t, 256, config.Embedding.Dimensions)
}

func TestLoadAIConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown provider", map[string]string{"SUMMARIZER_PROVIDER": "gemini"}, "SUMMARIZER_PROVIDER"},
		{"claude without key", map[string]string{"SUMMARIZER_PROVIDER": "claude"}, "ANTHROPIC_API_KEY"},
		{"char limit too small", map[string]string{"SUMMARIZER_CHAR_LIMIT": "50"}, "SUMMARIZER_CHAR_LIMIT"},
		{"zero min sources", map[string]string{"SUMMARIZER_MIN_SOURCES": "0"}, "SUMMARIZER_MIN_SOURCES"},
		{"embeddings without key", map[string]string{"EMBEDDING_ENABLED": "true"}, "EMBEDDING_ENABLED"},
		{"negative timeout", map[string]string{"SUMMARIZER_TIMEOUT": "-1s"}, "SUMMARIZER_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAIEnvVars(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadAIConfig()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers_IgnoreMalformed(t *testing.T) {
	t.Setenv("STORYWIRE_TEST_INT", "abc")
	t.Setenv("STORYWIRE_TEST_BOOL", "maybe")
	t.Setenv("STORYWIRE_TEST_DURATION", "soon")

	assert.Equal(t, 7, getEnvInt("STORYWIRE_TEST_INT", 7))
	assert.True(t, getEnvBool("STORYWIRE_TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("STORYWIRE_TEST_DURATION", time.Second))
}
