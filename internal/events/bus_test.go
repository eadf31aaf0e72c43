package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_EmitSync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var got []string
	var mu sync.Mutex
	bus.Subscribe(EventReplaySaved, "recorder", func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Payload.(ReplaySavedPayload).Name)
		return nil
	})

	err := bus.EmitSync(context.Background(), Event{
		Type:    EventReplaySaved,
		Source:  "test",
		Payload: ReplaySavedPayload{Name: "match-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"match-1"}, got)
}

func TestEventBus_EmitSyncReturnsHandlerError(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	boom := errors.New("boom")
	bus.Subscribe(EventReplayPruned, "failing", func(context.Context, Event) error { return boom })
	bus.Subscribe(EventReplayPruned, "panicking", func(context.Context, Event) error { panic("bad") })

	err := bus.EmitSync(context.Background(), Event{Type: EventReplayPruned})
	assert.ErrorIs(t, err, boom)
}

func TestEventBus_EmitAsyncAndStop(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	bus.Subscribe(EventReplayLoaded, "counter", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	for i := 0; i < 10; i++ {
		bus.Emit(context.Background(), Event{Type: EventReplayLoaded})
	}
	bus.Stop()
	assert.Equal(t, int32(10), calls.Load())

	bus.Emit(context.Background(), Event{Type: EventReplayLoaded})
	assert.Equal(t, int32(10), calls.Load(), "events after stop are dropped")

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}
	bus.Stop()
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	noop := func(context.Context, Event) error { return nil }
	bus.Subscribe(EventReplayRejected, "a", noop)
	bus.Subscribe(EventReplayRejected, "b", noop)
	require.Equal(t, 2, bus.HandlerCount(EventReplayRejected))

	bus.Unsubscribe(EventReplayRejected, "a")
	assert.Equal(t, 1, bus.HandlerCount(EventReplayRejected))
	assert.Equal(t, 0, bus.HandlerCount(EventReplaySaved))
}
