// Package feedbreaker isolates failing news feeds with one gobreaker circuit per feed.
//
// A feed's circuit opens after Threshold consecutive failures. Once Timeout has
// elapsed a single trial request is allowed (half-open); its success closes the
// circuit, its failure re-opens it and restarts the timeout. A request that is
// never reported back is abandoned after another Timeout and does not count.
//
// Every circuit is a gobreaker.DistributedCircuitBreaker over a Store, so
// several worker instances sharing a Store (see the redisstate package) see the
// same circuits. An admitted request holds the feed's store lock until its
// outcome is recorded: no two requests to one feed run at once, which is what
// keeps the half-open trial single across instances. Callers must report every
// admitted request with RecordSuccess or RecordFailure, or cancel the context
// passed to ShouldAllow.
//
// Store errors fail open: a feed is allowed rather than silently starved
// because the state backend is down.
package feedbreaker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"storywire/internal/observability/metrics"
)

// Default breaker settings.
const (
	DefaultThreshold = 5
	DefaultTimeout   = 5 * time.Minute
)

// stateKeyPrefix is the prefix gobreaker puts before a circuit name when it
// stores shared state.
const stateKeyPrefix = "gobreaker:state:"

var (
	// errFeedFailed is reported to gobreaker for a failed fetch.
	errFeedFailed = errors.New("feed request failed")
	// errAbandoned ends an admitted request nobody reported within Timeout.
	errAbandoned = errors.New("feed request abandoned")
)

// Config controls when circuits open and when they are tried again.
type Config struct {
	Threshold int
	Timeout   time.Duration
}

// DefaultConfig returns the default breaker settings.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Timeout: DefaultTimeout}
}

// Status summarizes the breaker for operators.
type Status struct {
	TotalTracked int      `json:"total_tracked"`
	OpenCircuits int      `json:"open_circuits"`
	OpenFeeds    []string `json:"open_feeds"`
}

// Breaker tracks circuit state for every feed.
type Breaker struct {
	store  Store
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	circuits map[string]*gobreaker.DistributedCircuitBreaker[struct{}]
	pending  map[string]*ticket
}

// ticket is one admitted request waiting for its outcome.
type ticket struct {
	outcome chan error
	done    chan struct{}
	err     error
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithLogger sets the logger used for store errors and transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) { b.logger = logger }
}

// New creates a Breaker backed by store. Non-positive settings fall back to defaults.
func New(store Store, cfg Config, opts ...Option) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	b := &Breaker{
		store:    store,
		cfg:      cfg,
		logger:   slog.Default(),
		circuits: make(map[string]*gobreaker.DistributedCircuitBreaker[struct{}]),
		pending:  make(map[string]*ticket),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ShouldAllow reports whether a request to the feed may proceed.
//
// It returns false while the circuit is open, while the half-open trial is out
// and while another request to the same feed holds its lock. An allowed request
// stays in flight until it is recorded, ctx is cancelled or Timeout passes.
func (b *Breaker) ShouldAllow(ctx context.Context, feedID string) bool {
	cb, err := b.circuit(feedID)
	if err != nil {
		b.logger.Warn("feed breaker store unavailable, allowing request",
			slog.String("feed_id", feedID),
			slog.Any("error", err))
		return true
	}

	t := &ticket{outcome: make(chan error, 1), done: make(chan struct{})}
	admitted := make(chan struct{})
	go func() {
		defer func() {
			b.mu.Lock()
			if b.pending[feedID] == t {
				delete(b.pending, feedID)
			}
			close(t.done)
			b.mu.Unlock()
		}()
		_, t.err = cb.Execute(func() (struct{}, error) {
			close(admitted)
			return struct{}{}, b.await(ctx, t)
		})
	}()

	select {
	case <-admitted:
	case <-t.done:
		select {
		case <-admitted:
		default:
			return b.rejected(feedID, t.err)
		}
	}

	b.mu.Lock()
	select {
	case <-t.done:
	default:
		b.pending[feedID] = t
	}
	b.mu.Unlock()
	return true
}

// await blocks the admitted request until its outcome arrives. A cancelled ctx
// or Timeout ends it as an excluded request; a ctx deadline does not, because a
// fetch that timed out is still reported as a failure.
func (b *Breaker) await(ctx context.Context, t *ticket) error {
	timer := time.NewTimer(b.cfg.Timeout)
	defer timer.Stop()
	done := ctx.Done()
	for {
		select {
		case err := <-t.outcome:
			return err
		case <-timer.C:
			return errAbandoned
		case <-done:
			if !errors.Is(ctx.Err(), context.Canceled) {
				done = nil
				continue
			}
			select {
			case err := <-t.outcome:
				return err
			default:
				return context.Canceled
			}
		}
	}
}

func (b *Breaker) rejected(feedID string, err error) bool {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	case errors.Is(err, ErrLocked):
		b.logger.Debug("feed request already in flight", slog.String("feed_id", feedID))
		return false
	case errors.Is(err, gobreaker.ErrNoSharedState):
		b.forget(feedID)
	}
	b.logger.Warn("feed breaker store failed, allowing request",
		slog.String("feed_id", feedID),
		slog.Any("error", err))
	return true
}

// RecordFailure counts a failed request and reports whether the circuit is now open.
func (b *Breaker) RecordFailure(ctx context.Context, feedID string) bool {
	cb := b.report(ctx, feedID, errFeedFailed)
	return cb != nil && cb.CircuitBreaker.State() == gobreaker.StateOpen
}

// RecordSuccess counts a successful request. A half-open circuit closes.
func (b *Breaker) RecordSuccess(ctx context.Context, feedID string) {
	b.report(ctx, feedID, nil)
}

// report hands the outcome to the feed's in-flight request, or records it as a
// request of its own when nothing is in flight.
func (b *Breaker) report(_ context.Context, feedID string, outcome error) *gobreaker.DistributedCircuitBreaker[struct{}] {
	b.mu.Lock()
	t, inFlight := b.pending[feedID]
	delete(b.pending, feedID)
	cb := b.circuits[feedID]
	b.mu.Unlock()

	var err error
	if inFlight {
		t.outcome <- outcome
		<-t.done
		err = t.err
	} else {
		var cerr error
		if cb, cerr = b.circuit(feedID); cerr != nil {
			b.logger.Warn("feed breaker store unavailable, outcome dropped",
				slog.String("feed_id", feedID),
				slog.Any("error", cerr))
			return nil
		}
		_, err = cb.Execute(func() (struct{}, error) { return struct{}{}, outcome })
	}

	switch {
	case err == nil, errors.Is(err, errFeedFailed), errors.Is(err, gobreaker.ErrOpenState):
	case errors.Is(err, errAbandoned), errors.Is(err, context.Canceled):
		b.logger.Debug("outcome arrived after the request was released", slog.String("feed_id", feedID))
	default:
		if errors.Is(err, gobreaker.ErrNoSharedState) {
			b.forget(feedID)
		}
		b.logger.Warn("feed breaker store write failed",
			slog.String("feed_id", feedID),
			slog.Any("error", err))
	}
	return cb
}

// Status returns how many feeds are tracked and which circuits are not closed.
func (b *Breaker) Status(_ context.Context) (Status, error) {
	records, err := b.store.ListData()
	if err != nil {
		return Status{}, err
	}

	st := Status{OpenFeeds: []string{}}
	for key, raw := range records {
		feedID, ok := strings.CutPrefix(key, stateKeyPrefix)
		if !ok {
			continue
		}
		var shared gobreaker.SharedState
		if err := json.Unmarshal(raw, &shared); err != nil {
			continue
		}
		st.TotalTracked++
		if shared.State != gobreaker.StateClosed {
			st.OpenFeeds = append(st.OpenFeeds, feedID)
		}
	}
	sort.Strings(st.OpenFeeds)
	st.OpenCircuits = len(st.OpenFeeds)
	metrics.UpdateOpenCircuits(st.OpenCircuits)
	return st, nil
}

// circuit returns the feed's breaker, creating its shared state on first use.
func (b *Breaker) circuit(feedID string) (*gobreaker.DistributedCircuitBreaker[struct{}], error) {
	b.mu.Lock()
	cb, ok := b.circuits[feedID]
	b.mu.Unlock()
	if ok {
		return cb, nil
	}

	cb, err := gobreaker.NewDistributedCircuitBreaker[struct{}](b.store, b.settings(feedID))
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.circuits[feedID]; ok {
		return existing, nil
	}
	b.circuits[feedID] = cb
	return cb, nil
}

// forget drops a circuit whose shared state vanished so the next call recreates it.
func (b *Breaker) forget(feedID string) {
	b.mu.Lock()
	delete(b.circuits, feedID)
	b.mu.Unlock()
}

func (b *Breaker) settings(feedID string) gobreaker.Settings {
	threshold := uint32(b.cfg.Threshold)
	return gobreaker.Settings{
		Name:        feedID,
		MaxRequests: 1,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, errAbandoned) || errors.Is(err, context.Canceled)
		},
		OnStateChange: b.onStateChange,
	}
}

func (b *Breaker) onStateChange(feedID string, from, to gobreaker.State) {
	metrics.RecordCircuitTransition(strings.ReplaceAll(to.String(), "-", "_"))
	attrs := []any{
		slog.String("feed_id", feedID),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	}
	if to == gobreaker.StateOpen {
		b.logger.Warn("feed circuit opened", attrs...)
		return
	}
	b.logger.Info("feed circuit state changed", attrs...)
}
