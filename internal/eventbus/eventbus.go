package eventbus

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"gitdash/internal/domain"
	"gitdash/internal/log"
)

// DefaultBuffer is the number of events queued before Publish blocks
const DefaultBuffer = 256

// EventHandler is a function that handles engine events
type EventHandler func(domain.Event)

// EventBus fans engine events out to subscribers
type EventBus interface {
	// Publish queues event for delivery and reports whether it was accepted
	Publish(event domain.Event) bool
	// Subscribe registers handler for eventType and returns an unsubscribe func.
	// After unsubscribing, the handler misses events still queued
	Subscribe(eventType domain.EventType, handler EventHandler) func()
	// Close stops accepting events and returns once queued ones are delivered
	Close()
}

// Option configures the bus
type Option func(*bus)

// WithLogger sets the logger used for handler panics
func WithLogger(l *slog.Logger) Option {
	return func(b *bus) {
		b.logger = log.OrNop(l)
	}
}

// WithBuffer sets the queue capacity
func WithBuffer(n int) Option {
	return func(b *bus) {
		if n >= 0 {
			b.buffer = n
		}
	}
}

type subscription struct {
	id      uint64
	handler EventHandler
}

// bus is the concrete implementation of EventBus.
// A single dispatcher goroutine calls handlers one at a time, so every
// subscriber sees events in publish order
type bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]subscription
	nextID   uint64

	closeMu sync.RWMutex
	closed  bool

	buffer int
	events chan domain.Event
	done   chan struct{}
	logger *slog.Logger
}

// New creates a new event bus and starts its dispatcher
func New(opts ...Option) EventBus {
	b := &bus{
		handlers: make(map[domain.EventType][]subscription),
		buffer:   DefaultBuffer,
		done:     make(chan struct{}),
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.events = make(chan domain.Event, b.buffer)

	go b.dispatch()

	return b
}

// Publish blocks while the queue is full. Handlers must not publish
// synchronously or they can deadlock the dispatcher
func (b *bus) Publish(event domain.Event) bool {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return false
	}
	b.events <- event
	return true
}

func (b *bus) Subscribe(eventType domain.EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subs := b.handlers[eventType]
			for i, s := range subs {
				if s.id == id {
					b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *bus) Close() {
	b.closeMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.closeMu.Unlock()

	<-b.done
}

// dispatch delivers events until the queue is closed and drained
func (b *bus) dispatch() {
	defer close(b.done)

	for event := range b.events {
		b.mu.RLock()
		subs := make([]subscription, len(b.handlers[event.Type()]))
		copy(subs, b.handlers[event.Type()])
		b.mu.RUnlock()

		for _, s := range subs {
			b.call(s.handler, event)
		}
	}
}

func (b *bus) call(h EventHandler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic",
				"event", event.Type(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(event)
}

// Pump forwards events from src to b until src is closed or ctx is done,
// and returns the number of events forwarded
func Pump(ctx context.Context, src <-chan domain.Event, b EventBus) int {
	forwarded := 0
	for {
		select {
		case <-ctx.Done():
			return forwarded
		case event, ok := <-src:
			if !ok {
				return forwarded
			}
			if !b.Publish(event) {
				return forwarded
			}
			forwarded++
		}
	}
}
