package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywire/internal/domain/entity"
	"storywire/internal/infra/fetcher"
)

func TestDiagnose(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	feeds := []entity.FeedConfig{
		{ID: "ok", URL: srv.URL + "/ok"},
		{ID: "empty", URL: srv.URL + "/empty"},
		{ID: "broken", URL: srv.URL + "/broken"},
		{ID: "down", URL: srv.URL + "/down"},
		{ID: "ftp", URL: "ftp://example.com/feed"},
	}

	got := fetcher.Diagnose(context.Background(), testConfig(), nil, feeds, 3)
	require.Len(t, got, len(feeds))

	assert.Equal(t, "ok", got[0].FeedID)
	assert.Equal(t, fetcher.DiagnosticOK, got[0].Status)
	assert.Equal(t, http.StatusOK, got[0].HTTPCode)
	assert.Equal(t, "rss", got[0].FeedType)
	assert.Equal(t, 2, got[0].ItemCount)
	require.NotNil(t, got[0].Latest)
	assert.True(t, got[0].Latest.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))

	assert.Equal(t, fetcher.DiagnosticEmpty, got[1].Status)
	assert.Equal(t, fetcher.DiagnosticParseError, got[2].Status)
	assert.NotEmpty(t, got[2].Error)

	assert.Equal(t, fetcher.DiagnosticHTTPError, got[3].Status)
	assert.Equal(t, http.StatusBadGateway, got[3].HTTPCode)

	assert.Equal(t, fetcher.DiagnosticInvalidURL, got[4].Status)
	assert.Zero(t, got[4].HTTPCode)
}

func TestDiagnose_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	got := fetcher.Diagnose(context.Background(), cfg, nil, []entity.FeedConfig{{ID: "slow", URL: srv.URL}}, 1)

	require.Len(t, got, 1)
	assert.Equal(t, fetcher.DiagnosticTimeout, got[0].Status)
}
