package eventbus

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitdash/internal/domain"
	"gitdash/internal/log"
)

func TestBus_DeliversInOrderToMatchingSubscribers(t *testing.T) {
	b := New()

	var got []float64
	var results int
	b.Subscribe(domain.EventProgress, func(e domain.Event) {
		got = append(got, e.(domain.ProgressEvent).Ratio)
	})
	b.Subscribe(domain.EventActionResult, func(domain.Event) { results++ })

	for i := 1; i <= 100; i++ {
		require.True(t, b.Publish(domain.ProgressEvent{Ratio: float64(i) / 100}))
	}
	b.Publish(domain.ActionResultEvent{Path: "/r"})
	b.Close()

	require.Len(t, got, 100)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1])
	}
	assert.Equal(t, 1, results)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()

	var mu sync.Mutex
	calls := map[string]int{}
	delivered := make(chan struct{}, 2)
	count := func(name string) EventHandler {
		return func(domain.Event) {
			mu.Lock()
			calls[name]++
			mu.Unlock()
			if name == "b" {
				delivered <- struct{}{}
			}
		}
	}
	unsubA := b.Subscribe(domain.EventScanComplete, count("a"))
	b.Subscribe(domain.EventScanComplete, count("b"))

	b.Publish(domain.ScanCompleteEvent{})
	// a runs before b, so once b has seen the event a has too
	<-delivered
	unsubA()
	unsubA()
	b.Publish(domain.ScanCompleteEvent{})
	b.Close()

	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 2, calls["b"])
}

func TestBus_RecoversFromHandlerPanic(t *testing.T) {
	var logs bytes.Buffer
	b := New(WithLogger(log.New(&logs, log.FormatText, "error")))

	delivered := 0
	b.Subscribe(domain.EventRefreshComplete, func(domain.Event) { panic("boom") })
	b.Subscribe(domain.EventRefreshComplete, func(domain.Event) { delivered++ })

	b.Publish(domain.RefreshCompleteEvent{})
	b.Publish(domain.RefreshCompleteEvent{})
	b.Close()

	assert.Equal(t, 2, delivered)
	assert.Contains(t, logs.String(), "event handler panic")
}

func TestBus_PublishAfterClose(t *testing.T) {
	b := New(WithBuffer(0))
	b.Close()
	b.Close()

	assert.False(t, b.Publish(domain.ProgressEvent{Ratio: 1}))
}

func TestPump_ForwardsUntilSourceCloses(t *testing.T) {
	b := New()
	var got []domain.EventType
	for _, et := range []domain.EventType{domain.EventProgress, domain.EventScanComplete} {
		b.Subscribe(et, func(e domain.Event) { got = append(got, e.Type()) })
	}

	src := make(chan domain.Event, 3)
	src <- domain.ProgressEvent{Ratio: 0.5}
	src <- domain.ProgressEvent{Ratio: 1}
	src <- domain.ScanCompleteEvent{}
	close(src)

	n := Pump(context.Background(), src, b)
	b.Close()

	assert.Equal(t, 3, n)
	assert.Equal(t, []domain.EventType{domain.EventProgress, domain.EventProgress, domain.EventScanComplete}, got)
}

func TestPump_StopsOnContextCancel(t *testing.T) {
	b := New()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Zero(t, Pump(ctx, make(chan domain.Event), b))
}
