// Package refresh is the application-wide "authoritative state changed"
// signal. Mutating commands publish one StateInvalidated after a successful
// round trip; views subscribe and re-read whatever they display.
package refresh

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/pubsub"
)

// StateInvalidated carries no data. The fields only describe what caused it,
// for logging; subscribers must re-fetch everything regardless.
type StateInvalidated struct {
	SessionID string
	Command   string
	At        time.Time
}

// Event is the envelope delivered to subscribers.
type Event = pubsub.Event[StateInvalidated]

// Hook runs synchronously inside Publish before any subscriber is notified.
type Hook func(StateInvalidated)

// Bus fans out StateInvalidated events.
//
// Delivery is non-blocking: a subscriber whose buffer is full misses the
// event. Since every event means "re-fetch everything", a subscriber with a
// pending event loses nothing by skipping a second one.
type Bus struct {
	broker *pubsub.Broker[StateInvalidated]

	mu    sync.RWMutex
	hooks []Hook
}

// NewBus creates a Bus with the default subscriber buffer.
func NewBus() *Bus {
	return &Bus{broker: pubsub.NewBroker[StateInvalidated]()}
}

// NewBusWithBuffer creates a Bus with a custom per-subscriber buffer.
func NewBusWithBuffer(size int) *Bus {
	return &Bus{broker: pubsub.NewBrokerWithBuffer[StateInvalidated](size)}
}

// OnInvalidate registers a hook. Hooks run in registration order on the
// publishing goroutine, so they complete before subscribers observe the event.
func (b *Bus) OnInvalidate(h Hook) {
	b.mu.Lock()
	b.hooks = append(b.hooks, h)
	b.mu.Unlock()
}

// Publish runs the hooks then broadcasts ev.
func (b *Bus) Publish(ev StateInvalidated) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	hooks := make([]Hook, len(b.hooks))
	copy(hooks, b.hooks)
	b.mu.RUnlock()

	for _, h := range hooks {
		h(ev)
	}

	b.broker.Publish(pubsub.InvalidatedEvent, ev)
	log.Debug(log.CatRefresh, "state invalidated",
		"session", ev.SessionID,
		"command", ev.Command,
		"subscribers", b.broker.SubscriberCount())
}

// Subscribe returns a channel of events that closes when ctx is cancelled or
// the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	return b.broker.Subscribe(ctx)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	return b.broker.SubscriberCount()
}

// Stats returns the number of events published and deliveries dropped.
func (b *Bus) Stats() (published, dropped uint64) {
	return b.broker.Stats()
}

// Close ends all subscriptions.
func (b *Bus) Close() {
	b.broker.Close()
}

// Listener returns a bubbletea-friendly listener for the editor.
func (b *Bus) Listener(ctx context.Context) *pubsub.ContinuousListener[StateInvalidated] {
	return pubsub.NewContinuousListener[StateInvalidated](ctx, b.broker)
}

// WaitCmd returns a tea.Cmd delivering the next event from ch.
func WaitCmd(ctx context.Context, ch <-chan Event) tea.Cmd {
	return pubsub.ListenCmd(ctx, ch)
}
