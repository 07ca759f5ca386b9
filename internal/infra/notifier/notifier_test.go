package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywire/internal/domain/entity"
)

/* ───────── fixtures ───────── */

func breakingStory() *entity.Story {
	detected := time.Date(2026, 3, 2, 9, 20, 0, 0, time.UTC)
	return &entity.Story{
		ID:                "20260302-abc",
		Category:          "world",
		Title:             "Volcano Erupts Near Reykjavik",
		Status:            entity.StatusBreaking,
		VerificationLevel: 3,
		ConfidenceScore:   85,
		SourceArticles: []entity.SourceArticle{
			{ArticleID: "a1", Source: "reuters", Title: "Volcano Erupts Near Reykjavik", URL: "https://reuters.example.com/a1"},
			{ArticleID: "a2", Source: "bbc", Title: "Icelandic Volcano Erupts", URL: "https://bbc.example.com/a2"},
			{ArticleID: "a3", Source: "ap", Title: "Eruption Near Reykjavik", URL: "https://ap.example.com/a3"},
		},
		BreakingNews:       true,
		BreakingDetectedAt: &detected,
	}
}

func testConfig(url string) WebhookConfig {
	return WebhookConfig{
		Enabled:        true,
		WebhookURL:     url,
		Timeout:        2 * time.Second,
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
	}
}

// fastSlack returns a Slack notifier without the 1 req/s production limit.
func fastSlack(url string) *SlackNotifier {
	n := NewSlackNotifier(testConfig(url))
	n.hook.rateLimiter = NewRateLimiter(1000, 10)
	return n
}

/* ───────── payloads ───────── */

func TestBuildBlockKitPayload(t *testing.T) {
	p := buildBlockKitPayload(breakingStory())

	assert.Equal(t, "BREAKING: Volcano Erupts Near Reykjavik (3 sources)", p.Text)
	require.Len(t, p.Blocks, 3)
	assert.Equal(t, "header", p.Blocks[0].Type)
	assert.Equal(t, "BREAKING: Volcano Erupts Near Reykjavik", p.Blocks[0].Text.Text)
	assert.Contains(t, p.Blocks[1].Text.Text, "*Corroborated by 3 sources*")
	assert.Contains(t, p.Blocks[1].Text.Text, "• <https://bbc.example.com/a2|Icelandic Volcano Erupts> (bbc)")
	assert.Equal(t, "world • confidence 85% • 2026-03-02T09:20:00Z", p.Blocks[2].Elements[0].Text)
}

func TestBuildEmbedPayload(t *testing.T) {
	st := breakingStory()
	for i := range 30 {
		st.SourceArticles = append(st.SourceArticles, entity.SourceArticle{
			Source: fmt.Sprintf("extra-%d", i), Title: "More", URL: "https://example.com",
		})
	}

	p := buildEmbedPayload(st)

	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]
	assert.Equal(t, "BREAKING: Volcano Erupts Near Reykjavik", e.Title)
	assert.Equal(t, "https://reuters.example.com/a1", e.URL)
	assert.Equal(t, discordBreakingColor, e.Color)
	assert.Len(t, e.Fields, maxEmbedFields)
	assert.Equal(t, DiscordEmbedField{Name: "reuters", Value: "[Volcano Erupts Near Reykjavik](https://reuters.example.com/a1)"}, e.Fields[0])
	assert.True(t, strings.HasPrefix(e.Description, "Corroborated by 3 sources: reuters, bbc, ap"))
	assert.Equal(t, "2026-03-02T09:20:00Z", e.Timestamp)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10, "..."))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7, "..."))
	// Never splits a multi-byte rune.
	assert.Equal(t, "é...", truncate("éééé", 6, "..."))
}

/* ───────── delivery ───────── */

func TestSlackNotifier_Delivers(t *testing.T) {
	var got SlackWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	err := fastSlack(server.URL).NotifyBreaking(context.Background(), breakingStory())

	require.NoError(t, err)
	assert.Equal(t, "BREAKING: Volcano Erupts Near Reykjavik (3 sources)", got.Text)
}

func TestDiscordNotifier_Delivers(t *testing.T) {
	var got DiscordWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewDiscordNotifier(testConfig(server.URL)).NotifyBreaking(context.Background(), breakingStory())

	require.NoError(t, err)
	require.Len(t, got.Embeds, 1)
	assert.Len(t, got.Embeds[0].Fields, 3)
}

func TestWebhook_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	err := fastSlack(server.URL).NotifyBreaking(context.Background(), breakingStory())

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhook_ClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service"))
	}))
	defer server.Close()

	err := fastSlack(server.URL).NotifyBreaking(context.Background(), breakingStory())

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusNotFound, clientErr.StatusCode)
	assert.Contains(t, clientErr.Message, "no_service")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhook_HonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message": "You are being rate limited.", "retry_after": 0.01}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewDiscordNotifier(testConfig(server.URL)).NotifyBreaking(context.Background(), breakingStory())

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhook_ExhaustsAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := fastSlack(server.URL).NotifyBreaking(context.Background(), breakingStory())

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Contains(t, err.Error(), "slack notification failed after 2 attempts")
}

func TestExtractRetryAfter(t *testing.T) {
	header := func(v string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{v}}}
	}

	assert.Equal(t, 1500*time.Millisecond, extractRetryAfter(header(""), []byte(`{"retry_after": 1.5}`)))
	assert.Equal(t, 3*time.Second, extractRetryAfter(header("3"), []byte("rate limited")))
	assert.Equal(t, 5*time.Second, extractRetryAfter(header(""), nil))
}

/* ───────── fan-out ───────── */

type notifierFunc func(context.Context, *entity.Story) error

func (f notifierFunc) NotifyBreaking(ctx context.Context, st *entity.Story) error { return f(ctx, st) }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	var delivered atomic.Int32
	ok := notifierFunc(func(context.Context, *entity.Story) error { delivered.Add(1); return nil })
	bad := notifierFunc(func(context.Context, *entity.Story) error { return boom })

	err := Multi{ok, bad, ok, NewNoOpNotifier()}.NotifyBreaking(context.Background(), breakingStory())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), delivered.Load())
	assert.NoError(t, Multi{}.NotifyBreaking(context.Background(), breakingStory()))
}
