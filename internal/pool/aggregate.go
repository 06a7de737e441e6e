package pool

import (
	"context"
	"log/slog"
	"time"

	"gitdash/internal/domain"
	"gitdash/internal/git"
	"gitdash/internal/log"
)

// StatusChecker computes the status of a single repository
type StatusChecker interface {
	Status(ctx context.Context, ref domain.RepoRef) (domain.RepoStatus, error)
}

// Aggregator checks many repositories concurrently. A failed check never
// drops a repository; it is reported as a degraded record instead
type Aggregator struct {
	checker StatusChecker
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

// AggregatorOption configures an Aggregator
type AggregatorOption func(*Aggregator)

// WithWorkers sets the requested parallelism, see Workers
func WithWorkers(n int) AggregatorOption {
	return func(a *Aggregator) {
		a.workers = n
	}
}

// WithLogger sets the logger for per-repository timings
func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = log.OrNop(l)
	}
}

// WithClock replaces time.Now for degraded records
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an aggregator over checker
func NewAggregator(checker StatusChecker, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		checker: checker,
		logger:  log.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns one status per ref, in the order of refs. onProgress
// (may be nil) is called after every check; returning false stops the batch,
// in which case stopped is true and the statuses are incomplete
func (a *Aggregator) Aggregate(ctx context.Context, refs []domain.RepoRef, onProgress DoneFunc) (statuses []domain.RepoStatus, stopped bool) {
	logger := log.Ctx(ctx, a.logger)
	workers := min(Workers(a.workers), max(len(refs), 1))
	logger.Debug("aggregating status", "repos", len(refs), "workers", workers)

	start := time.Now()
	statuses, stopped = Run(ctx, workers, refs, func(ctx context.Context, ref domain.RepoRef) domain.RepoStatus {
		return a.check(ctx, logger, ref)
	}, onProgress)

	logger.Debug("aggregation finished",
		"repos", len(statuses),
		"stopped", stopped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return statuses, stopped
}

func (a *Aggregator) check(ctx context.Context, logger *slog.Logger, ref domain.RepoRef) domain.RepoStatus {
	start := time.Now()
	st, err := a.checker.Status(ctx, ref)
	if err != nil {
		logger.Debug("status degraded",
			"path", ref.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return git.DegradedStatus(ref, err, a.now())
	}
	logger.Debug("status checked", "path", ref.Path, "elapsed_ms", time.Since(start).Milliseconds())
	return st
}
