package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"storywire/internal/domain/entity"
	"storywire/internal/observability/metrics"
	"storywire/internal/resilience/retry"
)

// FetchStatus describes how a fetch attempt ended without error.
type FetchStatus string

const (
	// StatusFetched means the feed returned content that was parsed.
	StatusFetched FetchStatus = "fetched"
	// StatusNotModified means the server answered 304 to the conditional request.
	StatusNotModified FetchStatus = "not_modified"
	// StatusCircuitOpen means the feed's circuit is open and no request was made.
	StatusCircuitOpen FetchStatus = "circuit_open"
)

// FetchResult is the outcome of a successful or skipped fetch.
type FetchResult struct {
	FeedID   string
	Status   FetchStatus
	Entries  []entity.RawEntry
	Salvaged bool
	Duration time.Duration
}

// Breaker is the per-feed circuit breaker consulted around every request.
type Breaker interface {
	ShouldAllow(ctx context.Context, feedID string) bool
	RecordFailure(ctx context.Context, feedID string) bool
	RecordSuccess(ctx context.Context, feedID string)
}

// ConditionalFetcher fetches feeds with If-None-Match / If-Modified-Since,
// guarded by a per-feed circuit breaker and a per-host rate limiter.
//
// Thread safety: ConditionalFetcher is safe for concurrent use.
type ConditionalFetcher struct {
	client     *http.Client
	breaker    Breaker
	validators ValidatorStore
	limiter    *hostLimiter
	config     Config
	logger     *slog.Logger
}

// NewConditionalFetcher creates a fetcher. A nil client gets a hardened default
// transport that re-validates every redirect target.
func NewConditionalFetcher(cfg Config, breaker Breaker, validators ValidatorStore, client *http.Client, logger *slog.Logger) *ConditionalFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &ConditionalFetcher{
		breaker:    breaker,
		validators: validators,
		limiter:    newHostLimiter(cfg.HostRequestsPerSecond, cfg.HostBurst),
		config:     cfg,
		logger:     logger,
	}
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		}
	}
	client.CheckRedirect = f.checkRedirect
	f.client = client
	return f
}

func (f *ConditionalFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.config.MaxRedirects {
		return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
	}
	if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
		return fmt.Errorf("redirect target validation failed: %w", err)
	}
	return nil
}

// Fetch polls one feed.
//
// An open circuit returns StatusCircuitOpen without any I/O. A 304 answer returns
// StatusNotModified and counts as a success. Transport errors, timeouts, non-2xx
// answers and unparseable bodies are returned as errors and recorded as breaker
// failures. A cancelled ctx is returned as an error but never recorded. A body that fails to parse as a whole is salvaged entry by entry; it
// only counts as a failure when nothing could be recovered.
func (f *ConditionalFetcher) Fetch(ctx context.Context, feed entity.FeedConfig) (*FetchResult, error) {
	start := time.Now()

	if !f.breaker.ShouldAllow(ctx, feed.ID) {
		metrics.RecordFeedPoll(string(StatusCircuitOpen), 0)
		return &FetchResult{FeedID: feed.ID, Status: StatusCircuitOpen}, nil
	}

	res, err := f.fetch(ctx, feed)
	duration := time.Since(start)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)) {
		// Shutdown says nothing about the feed; the breaker drops the request
		// when ctx is cancelled.
		metrics.RecordFeedPoll("cancelled", duration)
		return nil, fmt.Errorf("Fetch %s: %w", feed.ID, err)
	}
	if err != nil {
		nowOpen := f.breaker.RecordFailure(ctx, feed.ID)
		metrics.RecordFeedPoll("failed", duration)
		f.logger.Warn("feed fetch failed",
			slog.String("feed_id", feed.ID),
			slog.String("url", feed.URL),
			slog.Bool("circuit_open", nowOpen),
			slog.Any("error", err))
		return nil, fmt.Errorf("Fetch %s: %w", feed.ID, err)
	}

	f.breaker.RecordSuccess(ctx, feed.ID)
	res.Duration = duration
	metrics.RecordFeedPoll(string(res.Status), duration)
	return res, nil
}

func (f *ConditionalFetcher) fetch(ctx context.Context, feed entity.FeedConfig) (*FetchResult, error) {
	if err := validateURL(feed.URL, f.config.DenyPrivateIPs); err != nil {
		return nil, err
	}
	u, _ := url.Parse(feed.URL)
	if err := f.limiter.Wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("%w: waiting for host slot: %v", ErrTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	cached, err := f.validators.Get(ctx, feed.ID)
	if err != nil {
		f.logger.Warn("validator lookup failed, fetching unconditionally",
			slog.String("feed_id", feed.ID),
			slog.Any("error", err))
	}
	if cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}
	if cached.LastModified != "" {
		req.Header.Set("If-Modified-Since", cached.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{FeedID: feed.ID, Status: StatusNotModified}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, f.config.MaxBodySize)
	}

	items, salvaged, err := f.parse(feed, body)
	if err != nil {
		return nil, err
	}

	fresh := entity.FeedValidators{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if !fresh.IsZero() {
		if err := f.validators.Put(ctx, feed.ID, fresh); err != nil {
			f.logger.Warn("validator store failed",
				slog.String("feed_id", feed.ID),
				slog.Any("error", err))
		}
	}

	entries := make([]entity.RawEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, toRawEntry(it))
	}
	return &FetchResult{
		FeedID:   feed.ID,
		Status:   StatusFetched,
		Entries:  entries,
		Salvaged: salvaged,
	}, nil
}

func (f *ConditionalFetcher) parse(feed entity.FeedConfig, body []byte) ([]*gofeed.Item, bool, error) {
	fp := gofeed.NewParser()
	parsed, err := fp.Parse(bytes.NewReader(body))
	if err == nil {
		return parsed.Items, false, nil
	}

	items, dropped := salvageItems(body)
	f.logger.Warn("malformed feed, salvaging entries",
		slog.String("feed_id", feed.ID),
		slog.Int("salvaged", len(items)),
		slog.Int("dropped", dropped),
		slog.Any("error", err))
	if len(items) == 0 {
		return nil, false, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return items, true, nil
}

func toRawEntry(it *gofeed.Item) entity.RawEntry {
	link := it.Link
	if link == "" && len(it.Links) > 0 {
		link = it.Links[0]
	}
	var author string
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		author = it.Authors[0].Name
	}
	return entity.RawEntry{
		GUID:        it.GUID,
		Title:       it.Title,
		Link:        link,
		Description: it.Description,
		Content:     it.Content,
		Author:      author,
		Categories:  it.Categories,
		Published:   it.PublishedParsed,
		Updated:     it.UpdatedParsed,
	}
}
