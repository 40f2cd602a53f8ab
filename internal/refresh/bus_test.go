package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for refresh event")
	}
	return Event{}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := bus.Subscribe(ctx)
	b := bus.Subscribe(ctx)
	require.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(StateInvalidated{SessionID: "s1", Command: "paint_cell"})

	evA := receive(t, a)
	evB := receive(t, b)
	require.Equal(t, "paint_cell", evA.Payload.Command)
	require.Equal(t, "s1", evB.Payload.SessionID)
	require.False(t, evA.Payload.At.IsZero())
}

func TestBus_HooksRunBeforeSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := bus.Subscribe(ctx)

	var mu sync.Mutex
	var order []string
	bus.OnInvalidate(func(StateInvalidated) {
		mu.Lock()
		order = append(order, "hook1")
		mu.Unlock()
	})
	bus.OnInvalidate(func(StateInvalidated) {
		mu.Lock()
		order = append(order, "hook2")
		mu.Unlock()
	})

	bus.Publish(StateInvalidated{Command: "undo"})
	receive(t, ch)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"hook1", "hook2"}, order)
}

func TestBus_FullSubscriberMissesEvent(t *testing.T) {
	bus := NewBusWithBuffer(1)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := bus.Subscribe(ctx)

	bus.Publish(StateInvalidated{Command: "a"})
	bus.Publish(StateInvalidated{Command: "b"})

	published, dropped := bus.Stats()
	require.Equal(t, uint64(2), published)
	require.Equal(t, uint64(1), dropped)

	ev := receive(t, ch)
	require.Equal(t, "a", ev.Payload.Command)
}

func TestBus_SubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := bus.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBus_WaitCmd(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := WaitCmd(ctx, bus.Subscribe(ctx))
	bus.Publish(StateInvalidated{Command: "simplify_bw"})

	msg := cmd()
	ev, ok := msg.(Event)
	require.True(t, ok)
	require.Equal(t, "simplify_bw", ev.Payload.Command)
}
