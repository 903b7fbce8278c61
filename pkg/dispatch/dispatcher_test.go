package dispatch_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherdev/tether/pkg/dispatch"
	"github.com/tetherdev/tether/pkg/domain"
)

func TestDispatchDeliversInOrder(t *testing.T) {
	d := dispatch.New()
	defer d.Close()

	var mu sync.Mutex
	var got []string
	d.Listen("tile-1", "pickup", func(ev domain.Event) error {
		mu.Lock()
		got = append(got, ev.Value)
		mu.Unlock()
		return nil
	})

	for _, v := range []string{"a", "b", "c"} {
		d.Dispatch(domain.Event{Kind: "pickup", EntityID: "tile-1", Value: v})
	}
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDispatchRoutesByEntityAndKind(t *testing.T) {
	d := dispatch.New()
	defer d.Close()

	hits := make(map[string]int)
	var mu sync.Mutex
	count := func(name string) func(domain.Event) error {
		return func(domain.Event) error {
			mu.Lock()
			hits[name]++
			mu.Unlock()
			return nil
		}
	}
	d.Listen("tile-1", "pickup", count("t1-pickup"))
	d.Listen("tile-1", "putdown", count("t1-putdown"))
	d.Listen("tile-2", "pickup", count("t2-pickup"))

	d.Dispatch(domain.Event{Kind: "pickup", EntityID: "tile-1"})
	d.Dispatch(domain.Event{Kind: "pickup", EntityID: "tile-1"})
	d.Dispatch(domain.Event{Kind: "putdown", EntityID: "tile-2"})
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, hits["t1-pickup"])
	assert.Zero(t, hits["t1-putdown"])
	assert.Zero(t, hits["t2-pickup"])
}

func TestListenerFailuresAreIsolated(t *testing.T) {
	var failures []*domain.ListenerError
	var mu sync.Mutex
	d := dispatch.New(dispatch.WithErrorHook(func(le *domain.ListenerError) {
		mu.Lock()
		failures = append(failures, le)
		mu.Unlock()
	}))
	defer d.Close()

	var delivered int
	d.Listen("e", "changed", func(domain.Event) error {
		return errors.New("listener exploded")
	})
	d.Listen("e", "changed", func(domain.Event) error {
		panic("listener panicked")
	})
	d.Listen("e", "changed", func(domain.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})

	d.Dispatch(domain.Event{Kind: "changed", EntityID: "e"})
	d.Dispatch(domain.Event{Kind: "changed", EntityID: "e"})
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, delivered, "the healthy listener sees every event")
	require.Len(t, failures, 4)
	assert.ErrorContains(t, failures[0], "listener exploded")
	assert.ErrorContains(t, failures[1], "listener panicked")
}

func TestUnlistenStopsDelivery(t *testing.T) {
	d := dispatch.New()
	defer d.Close()

	var mu sync.Mutex
	var n int
	h := d.Listen("e", "changed", func(domain.Event) error {
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	})

	d.Dispatch(domain.Event{Kind: "changed", EntityID: "e"})
	d.Flush()
	d.Unlisten(h)
	d.Dispatch(domain.Event{Kind: "changed", EntityID: "e"})
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, n)

	d.Unlisten(h) // unknown handle: no-op
}

func TestDispatchAssignsEventID(t *testing.T) {
	d := dispatch.New()
	defer d.Close()

	idCh := make(chan string, 1)
	d.Listen("e", "changed", func(ev domain.Event) error {
		idCh <- ev.ID
		return nil
	})
	d.Dispatch(domain.Event{Kind: "changed", EntityID: "e"})
	d.Flush()

	assert.NotEmpty(t, <-idCh)
}

func TestDispatchAfterCloseIsDropped(t *testing.T) {
	d := dispatch.New()

	var mu sync.Mutex
	var n int
	d.Listen("e", "changed", func(domain.Event) error {
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	})

	d.Close()
	d.Dispatch(domain.Event{Kind: "changed", EntityID: "e"})
	d.Close() // idempotent

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, n)
}
