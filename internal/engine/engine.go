// Package engine runs scans, refreshes and actions on behalf of a consumer.
//
// A single goroutine owns the command loop and processes commands one at a
// time. Results travel back as domain events on one channel, with progress
// reported as a single ratio in [0,1] that never decreases within a batch
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"gitdash/internal/discovery"
	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
	"gitdash/internal/log"
	"gitdash/internal/pool"
)

// DefaultDiscoveryWeight is the share of a scan's progress given to discovery;
// the rest goes to status checks
const DefaultDiscoveryWeight = 0.4

// Default channel capacities
const (
	DefaultQueueSize   = 16
	DefaultEventBuffer = 64
)

// ErrStopped is returned by Submit once the engine no longer accepts commands
var ErrStopped = errors.New("engine stopped")

// Discoverer finds repositories below a root
type Discoverer interface {
	Discover(root string, onProgress discovery.ProgressFunc) []domain.RepoRef
}

// Aggregator computes statuses for many repositories
type Aggregator interface {
	Aggregate(ctx context.Context, refs []domain.RepoRef, onProgress pool.DoneFunc) ([]domain.RepoStatus, bool)
}

// ActionRunner runs network actions in a repository
type ActionRunner interface {
	Pull(ctx context.Context, path string) (string, error)
	Push(ctx context.Context, path string) (string, error)
}

// Engine processes commands sequentially on its own goroutine
type Engine struct {
	discoverer Discoverer
	aggregator Aggregator
	actions    ActionRunner
	logger     *slog.Logger

	discoveryWeight float64
	statusWeight    float64

	commands chan domain.Command
	events   chan domain.Event

	// stop aborts the batch in flight and ends the loop
	stop atomic.Bool

	quit     chan struct{}
	quitOnce sync.Once
	gone     chan struct{}
	goneOnce sync.Once

	startOnce sync.Once
	done      chan struct{}
}

// Option configures an Engine
type Option func(*Engine)

// WithWeights sets the share of scan progress given to discovery; status
// checks get the remainder. Values outside [0,1] are ignored
func WithWeights(discoveryWeight float64) Option {
	return func(e *Engine) {
		if discoveryWeight >= 0 && discoveryWeight <= 1 {
			e.discoveryWeight = discoveryWeight
			e.statusWeight = 1 - discoveryWeight
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = log.OrNop(l)
	}
}

// WithQueueSize sets how many commands may wait before Submit blocks
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.commands = make(chan domain.Command, n)
		}
	}
}

// WithEventBuffer sets the capacity of the events channel
func WithEventBuffer(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.events = make(chan domain.Event, n)
		}
	}
}

// New creates an engine. Call Start to begin processing
func New(discoverer Discoverer, aggregator Aggregator, actions ActionRunner, opts ...Option) *Engine {
	e := &Engine{
		discoverer:      discoverer,
		aggregator:      aggregator,
		actions:         actions,
		logger:          log.Nop(),
		discoveryWeight: DefaultDiscoveryWeight,
		statusWeight:    1 - DefaultDiscoveryWeight,
		commands:        make(chan domain.Command, DefaultQueueSize),
		events:          make(chan domain.Event, DefaultEventBuffer),
		quit:            make(chan struct{}),
		gone:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the command loop. ctx bounds every git invocation the
// engine makes; cancelling it kills running subprocesses and ends the loop.
// Calling Start more than once has no effect
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		go e.run(ctx)
	})
}

// Submit queues cmd. It blocks while the queue is full and fails with
// ErrStopped once the engine is shutting down. A ShutdownCommand takes
// effect immediately: the batch in flight is abandoned and queued commands
// are dropped
func (e *Engine) Submit(cmd domain.Command) error {
	if e.stop.Load() {
		return ErrStopped
	}
	if cmd.CommandType() == domain.CommandShutdown {
		e.shutdown()
		return nil
	}
	select {
	case <-e.quit:
		return ErrStopped
	default:
	}
	select {
	case e.commands <- cmd:
		// a shutdown that raced the send drops cmd unprocessed
		if e.stop.Load() {
			return ErrStopped
		}
		return nil
	case <-e.quit:
		return ErrStopped
	case <-e.done:
		return ErrStopped
	}
}

// Events returns the channel results are delivered on. It is closed when
// the loop exits
func (e *Engine) Events() <-chan domain.Event {
	return e.events
}

// Detach tells the engine nobody reads events any more. The batch in flight
// is aborted and the loop exits
func (e *Engine) Detach() {
	e.stop.Store(true)
	e.goneOnce.Do(func() { close(e.gone) })
}

// Wait blocks until the command loop has exited
func (e *Engine) Wait() {
	<-e.done
}

// Stopped reports whether the engine stopped accepting commands
func (e *Engine) Stopped() bool {
	return e.stop.Load()
}

func (e *Engine) shutdown() {
	e.stop.Store(true)
	e.quitOnce.Do(func() { close(e.quit) })
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer close(e.events)
	defer e.shutdown()

	e.logger.Debug("engine started",
		"discovery_weight", e.discoveryWeight,
		"status_weight", e.statusWeight,
	)
	defer e.logger.Debug("engine stopped")

	for {
		if e.stop.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-e.quit:
			return
		case <-e.gone:
			return
		case cmd := <-e.commands:
			if !e.handle(ctx, cmd) {
				return
			}
		}
	}
}

// handle processes one command and reports whether the loop should continue
func (e *Engine) handle(ctx context.Context, cmd domain.Command) bool {
	ctx = log.WithCorrelationID(ctx, uuid.NewString())
	logger := log.Ctx(ctx, e.logger)
	start := time.Now()
	logger.Info("command received", "command", cmd.CommandType())

	var ok bool
	switch c := cmd.(type) {
	case domain.ScanCommand:
		ok = e.scan(ctx, logger, c)
	case domain.RefreshCommand:
		ok = e.refresh(ctx, logger, c)
	case domain.RunActionCommand:
		ok = e.runAction(ctx, logger, c)
	case domain.ShutdownCommand:
		e.shutdown()
		ok = false
	default:
		logger.Warn("ignoring unknown command", "command", cmd.CommandType())
		ok = true
	}

	logger.Info("command finished",
		"command", cmd.CommandType(),
		"continue", ok,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ok
}

func (e *Engine) scan(ctx context.Context, logger *slog.Logger, cmd domain.ScanCommand) bool {
	progress := &progressTracker{}

	// The total number of directories is unknown up front; the estimate only
	// grows as the stack reveals more work
	estimate := 1
	refs := e.discoverer.Discover(cmd.Root, func(visited, pending int) bool {
		if e.stop.Load() {
			return false
		}
		estimate = max(estimate, visited+pending)
		ratio := min(float64(visited)/float64(estimate), 1) * e.discoveryWeight
		return e.emitProgress(ctx, progress, ratio)
	})
	if e.stop.Load() {
		logger.Info("scan aborted during discovery", "path", cmd.Root, "repos", len(refs))
		return false
	}
	logger.Info("discovery finished", "path", cmd.Root, "repos", len(refs))

	statuses, ok := e.aggregate(ctx, refs, progress, e.discoveryWeight, e.statusWeight)
	if !ok {
		logger.Info("scan aborted during status checks", "path", cmd.Root)
		return false
	}
	return e.emit(ctx, domain.ScanCompleteEvent{Statuses: statuses})
}

func (e *Engine) refresh(ctx context.Context, logger *slog.Logger, cmd domain.RefreshCommand) bool {
	statuses, ok := e.aggregate(ctx, cmd.Repos, &progressTracker{}, 0, 1)
	if !ok {
		logger.Info("refresh aborted", "repos", len(cmd.Repos))
		return false
	}
	return e.emit(ctx, domain.RefreshCompleteEvent{Statuses: statuses})
}

// aggregate maps status progress onto [base, base+weight] and reports
// whether the batch ran to completion
func (e *Engine) aggregate(ctx context.Context, refs []domain.RepoRef, progress *progressTracker, base, weight float64) ([]domain.RepoStatus, bool) {
	if len(refs) == 0 {
		return []domain.RepoStatus{}, e.emitProgress(ctx, progress, 1)
	}

	statuses, stopped := e.aggregator.Aggregate(ctx, refs, func(completed, total int) bool {
		if e.stop.Load() {
			return false
		}
		return e.emitProgress(ctx, progress, base+float64(completed)/float64(total)*weight)
	})
	if stopped || e.stop.Load() {
		return nil, false
	}
	return statuses, true
}

func (e *Engine) runAction(ctx context.Context, logger *slog.Logger, cmd domain.RunActionCommand) bool {
	var (
		out string
		err error
	)
	switch cmd.Action {
	case domain.ActionPull:
		out, err = e.actions.Pull(ctx, cmd.Path)
	case domain.ActionPush:
		out, err = e.actions.Push(ctx, cmd.Path)
	default:
		err = errors.Newf("unsupported action %s", cmd.Action)
	}

	outcome := domain.Outcome{OK: true, Message: out}
	if err != nil {
		outcome = domain.Outcome{OK: false, Message: dasherrors.RawMessage(err)}
		logger.Info("action failed", "path", cmd.Path, "action", cmd.Action.String(), "error", err)
	} else {
		logger.Info("action succeeded", "path", cmd.Path, "action", cmd.Action.String())
	}

	return e.emit(ctx, domain.ActionResultEvent{Path: cmd.Path, Action: cmd.Action, Outcome: outcome})
}

// emit delivers ev unless the consumer has gone away. A failed delivery
// stops the engine
func (e *Engine) emit(ctx context.Context, ev domain.Event) bool {
	select {
	case <-e.gone:
		e.stop.Store(true)
		return false
	default:
	}
	select {
	case e.events <- ev:
		return true
	case <-e.gone:
	case <-ctx.Done():
	}
	e.stop.Store(true)
	return false
}

func (e *Engine) emitProgress(ctx context.Context, p *progressTracker, ratio float64) bool {
	return e.emit(ctx, domain.ProgressEvent{Ratio: p.next(ratio)})
}

// progressTracker keeps reported ratios within [0,1] and non-decreasing.
// It is only used from one goroutine at a time: the discovery walk, then
// the pool's serialized completion callback
type progressTracker struct {
	last float64
}

func (p *progressTracker) next(ratio float64) float64 {
	ratio = min(max(ratio, 0), 1)
	if ratio < p.last {
		ratio = p.last
	}
	p.last = ratio
	return ratio
}
