// Package changefeed runs leased, checkpointed consumers over a document change feed.
//
// A Processor reads documents in sequence order after its group's checkpoint, hands
// them to a Handler and commits the checkpoint to the last document before the first
// failure. Failed documents and everything after them are delivered again, so
// handlers must be idempotent.
//
// Sequence numbers are handed out when a write starts, not when it commits, so a
// slow writer can commit a document below a checkpoint that already moved past
// it. Sources that can tell handled documents from unhandled ones plug in a
// StragglerFunc; every pass then sweeps such documents before reading new ones.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storywire/internal/observability/metrics"
	"storywire/internal/repository"
)

// Document is anything carried by a change feed.
type Document interface {
	ChangeSeq() int64
}

// Source reads a change feed.
type Source[T Document] interface {
	ChangesSince(ctx context.Context, afterSeq int64, limit int) ([]T, error)
}

// Handler processes one document.
type Handler[T Document] interface {
	Handle(ctx context.Context, doc T) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T Document] func(ctx context.Context, doc T) error

// Handle calls f(ctx, doc).
func (f HandlerFunc[T]) Handle(ctx context.Context, doc T) error {
	return f(ctx, doc)
}

// StragglerFunc returns up to limit documents with a sequence at or below
// throughSeq that were never handled, ordered by sequence.
type StragglerFunc[T Document] func(ctx context.Context, throughSeq int64, limit int) ([]T, error)

// Config controls a Processor.
type Config struct {
	Group        string
	BatchSize    int
	Parallelism  int
	PollInterval time.Duration
	LeaseTTL     time.Duration
}

// DefaultConfig returns defaults for group.
func DefaultConfig(group string) Config {
	return Config{
		Group:        group,
		BatchSize:    100,
		Parallelism:  4,
		PollInterval: time.Second,
		LeaseTTL:     30 * time.Second,
	}
}

// BatchResult describes one RunOnce pass.
type BatchResult struct {
	Delivered  int
	Committed  int
	Failed     int
	Checkpoint int64
	// Swept counts stragglers below the checkpoint handled successfully.
	Swept int
}

// Processor consumes one change feed on behalf of a consumer group.
type Processor[T Document] struct {
	cfg     Config
	source  Source[T]
	leases  repository.LeaseRepository
	handler Handler[T]
	owner   string
	logger  *slog.Logger
	now     func() time.Time
	onLag   func(int)

	stragglers StragglerFunc[T]
}

// Option configures a Processor.
type Option[T Document] func(*Processor[T])

// WithOwner overrides the generated lease owner id.
func WithOwner[T Document](owner string) Option[T] {
	return func(p *Processor[T]) { p.owner = owner }
}

// WithClock replaces the clock used for lease expiry.
func WithClock[T Document](now func() time.Time) Option[T] {
	return func(p *Processor[T]) { p.now = now }
}

// WithLagObserver receives the number of delivered documents left uncommitted after each pass.
func WithLagObserver[T Document](fn func(int)) Option[T] {
	return func(p *Processor[T]) { p.onLag = fn }
}

// WithStragglers enables the sweep of documents committed below the checkpoint.
func WithStragglers[T Document](fn StragglerFunc[T]) Option[T] {
	return func(p *Processor[T]) { p.stragglers = fn }
}

// NewProcessor creates a Processor.
func NewProcessor[T Document](cfg Config, source Source[T], leases repository.LeaseRepository, handler Handler[T], logger *slog.Logger, opts ...Option[T]) *Processor[T] {
	def := DefaultConfig(cfg.Group)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor[T]{
		cfg:     cfg,
		source:  source,
		leases:  leases,
		handler: handler,
		owner:   OwnerID(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.With(slog.String("component", "changefeed"), slog.String("group", cfg.Group), slog.String("owner", p.owner))
	return p
}

// OwnerID returns a lease owner id unique to this process: hostname plus a random suffix.
func OwnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()
}

// Owner returns the lease owner id.
func (p *Processor[T]) Owner() string {
	return p.owner
}

// RunOnce acquires or renews the lease, processes one batch and commits progress.
// It returns repository.ErrLeaseHeld when another owner holds the group.
func (p *Processor[T]) RunOnce(ctx context.Context) (BatchResult, error) {
	lease, err := p.leases.Acquire(ctx, p.cfg.Group, p.owner, p.cfg.LeaseTTL, p.now())
	if err != nil {
		return BatchResult{}, fmt.Errorf("RunOnce %s: %w", p.cfg.Group, err)
	}
	res := BatchResult{Checkpoint: lease.Checkpoint}
	res.Swept = p.sweep(ctx, lease.Checkpoint)

	docs, err := p.source.ChangesSince(ctx, lease.Checkpoint, p.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("RunOnce %s: read changes: %w", p.cfg.Group, err)
	}
	res.Delivered = len(docs)
	if len(docs) == 0 {
		p.observeLag(0)
		return res, nil
	}

	errs := p.handleAll(ctx, docs)

	committed := len(docs)
	for i, herr := range errs {
		metrics.RecordChangeFeedItem(p.cfg.Group, herr == nil)
		if herr == nil {
			continue
		}
		res.Failed++
		if i < committed {
			committed = i
		}
		p.logger.Warn("change handler failed, will redeliver",
			slog.Int64("seq", docs[i].ChangeSeq()),
			slog.Any("error", herr))
	}
	res.Committed = committed
	p.observeLag(len(docs) - committed)

	if committed == 0 {
		return res, nil
	}
	checkpoint := docs[committed-1].ChangeSeq()
	if err := p.leases.Commit(ctx, p.cfg.Group, p.owner, checkpoint); err != nil {
		return res, fmt.Errorf("RunOnce %s: commit %d: %w", p.cfg.Group, checkpoint, err)
	}
	res.Checkpoint = checkpoint
	metrics.UpdateChangeFeedCheckpoint(p.cfg.Group, checkpoint)
	return res, nil
}

// Run processes the change feed until ctx is cancelled. It sleeps PollInterval
// when idle, when a batch had failures and while the lease is held elsewhere.
func (p *Processor[T]) Run(ctx context.Context) error {
	p.logger.Info("change processor started")
	for {
		res, err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("change processor stopped")
			return nil
		}

		wait := true
		switch {
		case errors.Is(err, repository.ErrLeaseHeld):
			p.logger.Debug("lease held by another owner")
		case errors.Is(err, repository.ErrLeaseLost):
			p.logger.Warn("lease lost, waiting to re-acquire", slog.Any("error", err))
		case err != nil:
			p.logger.Error("change batch failed", slog.Any("error", err))
		case res.Delivered > 0 && res.Failed == 0:
			wait = false
		}
		if !wait {
			continue
		}

		select {
		case <-ctx.Done():
			p.logger.Info("change processor stopped")
			return nil
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// sweep hands stragglers at or below checkpoint to the handler. Failures are
// logged and left for the next pass; they never move the checkpoint.
func (p *Processor[T]) sweep(ctx context.Context, checkpoint int64) int {
	if p.stragglers == nil || checkpoint <= 0 {
		return 0
	}
	docs, err := p.stragglers(ctx, checkpoint, p.cfg.BatchSize)
	if err != nil {
		p.logger.Warn("straggler sweep failed", slog.Int64("checkpoint", checkpoint), slog.Any("error", err))
		return 0
	}
	if len(docs) == 0 {
		return 0
	}

	swept := 0
	for i, herr := range p.handleAll(ctx, docs) {
		metrics.RecordChangeFeedItem(p.cfg.Group, herr == nil)
		if herr != nil {
			p.logger.Warn("straggler handler failed, will retry",
				slog.Int64("seq", docs[i].ChangeSeq()),
				slog.Any("error", herr))
			continue
		}
		swept++
	}
	p.logger.Info("swept stragglers below checkpoint",
		slog.Int64("checkpoint", checkpoint),
		slog.Int("found", len(docs)),
		slog.Int("handled", swept))
	return swept
}

// handleAll runs the handler over docs with bounded parallelism and returns
// the error of each document by index.
func (p *Processor[T]) handleAll(ctx context.Context, docs []T) []error {
	errs := make([]error, len(docs))
	var eg errgroup.Group
	eg.SetLimit(p.cfg.Parallelism)
	for i, doc := range docs {
		eg.Go(func() error {
			errs[i] = p.handler.Handle(ctx, doc)
			return nil
		})
	}
	_ = eg.Wait()
	return errs
}

func (p *Processor[T]) observeLag(n int) {
	if p.onLag != nil {
		p.onLag(n)
	}
}
