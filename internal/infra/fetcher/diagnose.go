package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"storywire/internal/domain/entity"
)

// DiagnosticStatus classifies the outcome of a feed probe.
type DiagnosticStatus string

const (
	DiagnosticOK         DiagnosticStatus = "OK"
	DiagnosticInvalidURL DiagnosticStatus = "INVALID_URL"
	DiagnosticHTTPError  DiagnosticStatus = "HTTP_ERROR"
	DiagnosticTimeout    DiagnosticStatus = "TIMEOUT"
	DiagnosticParseError DiagnosticStatus = "PARSE_ERROR"
	DiagnosticEmpty      DiagnosticStatus = "EMPTY"
)

// Diagnostic is the result of probing one feed.
type Diagnostic struct {
	FeedID         string           `json:"feed_id"`
	URL            string           `json:"url"`
	Status         DiagnosticStatus `json:"status"`
	HTTPCode       int              `json:"http_code,omitempty"`
	FeedType       string           `json:"feed_type,omitempty"`
	ItemCount      int              `json:"item_count"`
	Latest         *time.Time       `json:"latest,omitempty"`
	ResponseTimeMS int64            `json:"response_time_ms"`
	Error          string           `json:"error,omitempty"`
}

// Diagnose probes every feed with an unconditional GET and reports what it
// found. It bypasses circuit breakers and validator caches, so it never
// changes ingestion state. Results keep the order of feeds.
func Diagnose(ctx context.Context, cfg Config, client *http.Client, feeds []entity.FeedConfig, concurrency int) []Diagnostic {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	limiter := newHostLimiter(cfg.HostRequestsPerSecond, cfg.HostBurst)

	out := make([]Diagnostic, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, feed := range feeds {
		g.Go(func() error {
			out[i] = diagnoseFeed(gctx, cfg, client, limiter, feed)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func diagnoseFeed(ctx context.Context, cfg Config, client *http.Client, limiter *hostLimiter, feed entity.FeedConfig) Diagnostic {
	d := Diagnostic{FeedID: feed.ID, URL: feed.URL}
	if err := validateURL(feed.URL, cfg.DenyPrivateIPs); err != nil {
		d.Status = DiagnosticInvalidURL
		d.Error = err.Error()
		return d
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	u, _ := url.Parse(feed.URL)
	if err := limiter.Wait(ctx, u.Host); err != nil {
		d.Status = DiagnosticTimeout
		d.Error = err.Error()
		return d
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		d.Status = DiagnosticInvalidURL
		d.Error = err.Error()
		return d
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		d.ResponseTimeMS = time.Since(start).Milliseconds()
		d.Status = DiagnosticHTTPError
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			d.Status = DiagnosticTimeout
		}
		d.Error = err.Error()
		return d
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	d.HTTPCode = resp.StatusCode
	body, err := io.ReadAll(io.LimitReader(resp.Body, cfg.MaxBodySize+1))
	d.ResponseTimeMS = time.Since(start).Milliseconds()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.Status = DiagnosticHTTPError
		d.Error = resp.Status
		return d
	}
	if err != nil {
		d.Status = DiagnosticHTTPError
		d.Error = fmt.Sprintf("reading body: %v", err)
		return d
	}
	if int64(len(body)) > cfg.MaxBodySize {
		d.Status = DiagnosticHTTPError
		d.Error = ErrBodyTooLarge.Error()
		return d
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		items, _ := salvageItems(body)
		if len(items) == 0 {
			d.Status = DiagnosticParseError
			d.Error = err.Error()
			return d
		}
		parsed = &gofeed.Feed{Items: items, FeedType: "salvaged"}
	}

	d.FeedType = parsed.FeedType
	d.ItemCount = len(parsed.Items)
	d.Latest = latestItem(parsed.Items)
	d.Status = DiagnosticOK
	if d.ItemCount == 0 {
		d.Status = DiagnosticEmpty
	}
	return d
}

func latestItem(items []*gofeed.Item) *time.Time {
	var latest *time.Time
	for _, it := range items {
		at := it.PublishedParsed
		if at == nil {
			at = it.UpdatedParsed
		}
		if at != nil && (latest == nil || at.After(*latest)) {
			t := at.UTC()
			latest = &t
		}
	}
	return latest
}
