package ingest_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storywire/internal/domain/entity"
	"storywire/internal/infra/adapter/persistence/memory"
	"storywire/internal/infra/fetcher"
	"storywire/internal/usecase/ingest"
)

/* ───────── fakes ───────── */

type stubFetcher struct {
	mu      sync.Mutex
	results map[string]*fetcher.FetchResult
	errs    map[string]error
	calls   []string
	block   map[string]bool

	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func (f *stubFetcher) Fetch(ctx context.Context, feed entity.FeedConfig) (*fetcher.FetchResult, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.maxInFlight)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxInFlight, old, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, feed.ID)
	res, err, block := f.results[feed.ID], f.errs[feed.ID], f.block[feed.ID]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &fetcher.FetchResult{FeedID: feed.ID, Status: fetcher.StatusFetched}, nil
	}
	return res, nil
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

// cancellingRepo stores articles until the cycle is cancelled after `after` inserts.
type cancellingRepo struct {
	*memory.ArticleRepo
	after   int
	inserts int
}

func (r *cancellingRepo) Insert(ctx context.Context, art *entity.Article) (bool, error) {
	r.inserts++
	if r.inserts > r.after {
		return false, context.Canceled
	}
	return r.ArticleRepo.Insert(ctx, art)
}

/* ───────── helpers ───────── */

func fetched(feedID string, entries ...entity.RawEntry) *fetcher.FetchResult {
	return &fetcher.FetchResult{FeedID: feedID, Status: fetcher.StatusFetched, Entries: entries}
}

func newService(t *testing.T, feeds []entity.FeedConfig, f ingest.FeedFetcher, cfg ingest.Config) (*ingest.Service, *memory.ArticleRepo, *memory.PollStateRepo) {
	t.Helper()
	articles := memory.NewArticleRepo()
	polls := memory.NewPollStateRepo()
	sched := ingest.NewScheduler(feeds, polls, ingest.SchedulerConfig{BatchSize: 50, Cooldown: 0})
	return ingest.NewService(articles, articles, sched, f, cfg, nil), articles, polls
}

/* ───────── tests ───────── */

func TestRunCycle_OutcomesAreCountedPerFeed(t *testing.T) {
	feeds := []entity.FeedConfig{feed("ok", "world"), feed("same", "tech"), feed("blocked", "sport"), feed("broken", "science")}
	f := &stubFetcher{
		results: map[string]*fetcher.FetchResult{
			"ok": fetched("ok",
				entity.RawEntry{Title: "Earthquake Strikes Northern Japan", Link: "https://ok.example.com/quake"},
				entity.RawEntry{Title: "Earthquake Strikes Northern Japan", Link: "https://ok.example.com/quake#top"},
				entity.RawEntry{Title: "", Link: "https://ok.example.com/empty"},
			),
			"same":    {FeedID: "same", Status: fetcher.StatusNotModified},
			"blocked": {FeedID: "blocked", Status: fetcher.StatusCircuitOpen},
		},
		errs: map[string]error{"broken": errors.New("HTTP 503")},
	}
	svc, articles, polls := newService(t, feeds, f, ingest.DefaultConfig())

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.FeedsSelected)
	assert.Equal(t, int64(1), stats.Fetched)
	assert.Equal(t, int64(1), stats.NotModified)
	assert.Equal(t, int64(1), stats.CircuitOpen)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(3), stats.Entries)
	assert.Equal(t, int64(1), stats.Inserted)
	assert.Equal(t, int64(1), stats.Duplicates, "fragment-only URL variants collapse to one id")
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, 1, articles.Len())

	last, err := polls.LastPolls(context.Background(), []string{"ok", "same", "blocked", "broken"})
	require.NoError(t, err)
	assert.Len(t, last, 4, "every attempt is recorded, including skips and failures")
}

func TestRunCycle_CancelledStoreKeepsCountsSoFar(t *testing.T) {
	f := &stubFetcher{results: map[string]*fetcher.FetchResult{
		"ok": fetched("ok",
			entity.RawEntry{Title: "Earthquake Strikes Northern Japan", Link: "https://ok.example.com/quake"},
			entity.RawEntry{Title: "", Link: "https://ok.example.com/empty"},
			entity.RawEntry{Title: "Markets Rally", Link: "https://ok.example.com/markets"},
			entity.RawEntry{Title: "Storm Warning Issued", Link: "https://ok.example.com/storm"},
		),
	}}
	repo := &cancellingRepo{ArticleRepo: memory.NewArticleRepo(), after: 1}
	sched := ingest.NewScheduler([]entity.FeedConfig{feed("ok", "world")}, memory.NewPollStateRepo(),
		ingest.SchedulerConfig{BatchSize: 50, Cooldown: 0})
	svc := ingest.NewService(repo, repo, sched, f, ingest.DefaultConfig(), nil)

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Inserted)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(1), stats.StoreErrors)
	assert.Equal(t, 2, repo.inserts, "no inserts are attempted after cancellation")
}

func TestRunCycle_RepeatedFetchIsIdempotent(t *testing.T) {
	entry := entity.RawEntry{Title: "Markets Rally", Link: "https://ok.example.com/markets"}
	f := &stubFetcher{results: map[string]*fetcher.FetchResult{"ok": fetched("ok", entry)}}
	svc, articles, _ := newService(t, []entity.FeedConfig{feed("ok", "business")}, f, ingest.DefaultConfig())
	ctx := context.Background()

	first, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	second, err := svc.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Inserted)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, int64(1), second.Duplicates)
	assert.Equal(t, 1, articles.Len())
}

func TestRunCycle_StoreUnavailableAbortsCycle(t *testing.T) {
	f := &stubFetcher{}
	polls := memory.NewPollStateRepo()
	sched := ingest.NewScheduler([]entity.FeedConfig{feed("ok", "world")}, polls, ingest.DefaultSchedulerConfig())
	svc := ingest.NewService(downStore{}, memory.NewArticleRepo(), sched, f, ingest.DefaultConfig(), nil)

	stats, err := svc.RunCycle(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrStoreUnavailable)
	assert.Nil(t, stats)
	assert.Empty(t, f.calls)
	last, _ := polls.LastPolls(context.Background(), []string{"ok"})
	assert.Empty(t, last, "nothing is persisted by an aborted cycle")
}

func TestRunCycle_ConcurrencyIsBounded(t *testing.T) {
	var feeds []entity.FeedConfig
	for _, id := range []string{"f1", "f2", "f3", "f4", "f5", "f6"} {
		feeds = append(feeds, feed(id, "cat-"+id))
	}
	f := &stubFetcher{delay: 20 * time.Millisecond}
	cfg := ingest.DefaultConfig()
	cfg.MaxConcurrentFetches = 2
	svc, _, _ := newService(t, feeds, f, cfg)

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(6), stats.Fetched)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.maxInFlight), int32(2))
}

func TestRunCycle_SlowFeedDoesNotBlockOthers(t *testing.T) {
	feeds := []entity.FeedConfig{feed("slow", "a"), feed("fast-1", "b"), feed("fast-2", "c")}
	f := &stubFetcher{
		block: map[string]bool{"slow": true},
		results: map[string]*fetcher.FetchResult{
			"fast-1": fetched("fast-1", entity.RawEntry{Title: "One Story", Link: "https://b.example.com/1"}),
			"fast-2": fetched("fast-2", entity.RawEntry{Title: "Two Story", Link: "https://c.example.com/2"}),
		},
	}
	cfg := ingest.DefaultConfig()
	cfg.FetchTimeout = 30 * time.Millisecond
	svc, articles, _ := newService(t, feeds, f, cfg)

	start := time.Now()
	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.Fetched)
	assert.Equal(t, 2, articles.Len())
}
