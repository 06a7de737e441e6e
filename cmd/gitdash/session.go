package main

import (
	"context"
	"log/slog"

	"gitdash/internal/config"
	"gitdash/internal/discovery"
	"gitdash/internal/domain"
	"gitdash/internal/engine"
	"gitdash/internal/eventbus"
	"gitdash/internal/git"
	"gitdash/internal/pool"
	"gitdash/internal/store"
)

// session is one running engine with its events fanned out through a bus
// into a status store
type session struct {
	engine *engine.Engine
	bus    eventbus.EventBus
	store  *store.StatusStore
	logger *slog.Logger

	detach func()
	pumped chan struct{}
}

func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) *session {
	runner := git.NewRunner(
		git.WithBinary(cfg.Git.Binary),
		git.WithRunnerLogger(logger),
	)
	service := git.NewService(runner,
		git.WithStatusTimeout(cfg.Git.StatusTimeout.Std()),
		git.WithActionTimeout(cfg.Git.ActionTimeout.Std()),
		git.WithLogger(logger),
	)
	walker := discovery.NewWalker(
		discovery.WithLogger(logger),
		discovery.WithProgressEvery(cfg.Scan.ProgressEvery),
		discovery.WithSkipDirs(cfg.Scan.SkipDirs...),
	)
	aggregator := pool.NewAggregator(service,
		pool.WithWorkers(cfg.Scan.Workers),
		pool.WithLogger(logger),
	)

	s := &session{
		engine: engine.New(walker, aggregator, service,
			engine.WithWeights(cfg.Scan.DiscoveryWeight),
			engine.WithLogger(logger),
		),
		bus:    eventbus.New(eventbus.WithLogger(logger)),
		store:  store.NewStatusStore(),
		logger: logger,
		pumped: make(chan struct{}),
	}
	s.detach = s.store.Attach(s.bus)

	s.engine.Start(ctx)
	go func() {
		defer close(s.pumped)
		n := eventbus.Pump(ctx, s.engine.Events(), s.bus)
		logger.Debug("event pump stopped", "forwarded", n)
	}()

	return s
}

// onProgress calls fn with every progress ratio and returns an unsubscribe func
func (s *session) onProgress(fn func(ratio float64)) func() {
	return s.bus.Subscribe(domain.EventProgress, func(e domain.Event) {
		fn(e.(domain.ProgressEvent).Ratio)
	})
}

// await submits cmd and blocks until the bus delivers an event of type until.
// Events published before it are delivered to every subscriber first
func (s *session) await(ctx context.Context, cmd domain.Command, until domain.EventType) (domain.Event, error) {
	got := make(chan domain.Event, 1)
	unsubscribe := s.bus.Subscribe(until, func(e domain.Event) {
		select {
		case got <- e:
		default:
		}
	})
	defer unsubscribe()

	if err := s.engine.Submit(cmd); err != nil {
		return nil, err
	}

	select {
	case e := <-got:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.pumped:
		// the pump may have forwarded the event just before stopping
		select {
		case e := <-got:
			return e, nil
		default:
			return nil, engine.ErrStopped
		}
	}
}

// close shuts the engine down and waits until every event has been delivered
func (s *session) close() {
	if err := s.engine.Submit(domain.ShutdownCommand{}); err != nil {
		s.logger.Debug("engine already stopped", "error", err)
	}
	s.engine.Wait()
	<-s.pumped
	s.bus.Close()
	s.detach()
}
