package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
)

const clientBuffer = 32

// streamedEvents is every event type the bus can dispatch.
var streamedEvents = []events.EventType{
	events.ItemProcessingStartedEvent,
	events.ItemDeadLetteredEvent,
	events.SessionStepCompletedEvent,
	events.SessionCompletedEvent,
	events.SessionErrorEvent,
	events.SessionApprovalNeededEvent,
	events.TriggerInvokedEvent,
	events.TriggerDepthExceededEvent,
	events.MonitorStartedEvent,
	events.MonitorStoppedEvent,
	events.MonitorCheckCompleteEvent,
	events.CheckTriggeredEvent,
	events.CheckFailedEvent,
	events.ApprovalDecidedEvent,
}

// Frame is one outbound server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// Broadcaster fans bus events out to connected stream clients. A client that
// stops draining its channel loses frames instead of blocking the dispatch
// goroutine.
type Broadcaster struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan Frame]struct{}
	closed  bool
}

// NewBroadcaster creates a broadcaster with no clients attached.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger:  logger.With("module", "web"),
		clients: make(map[chan Frame]struct{}),
	}
}

// Attach registers the broadcaster as the handler for every event type the
// bus carries. The subscriber dispatches one handler per type, so Attach must
// run before any other handler registration for these types.
func (b *Broadcaster) Attach(bus eventbus.EventSubscriber) error {
	for _, eventType := range streamedEvents {
		if err := bus.Handle(eventType, b.relay(eventType)); err != nil {
			return fmt.Errorf("failed to attach stream to %s events: %w", eventType, err)
		}
	}

	return nil
}

func (b *Broadcaster) relay(eventType events.EventType) eventbus.EventHandler {
	return func(_ context.Context, event any) error {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode %s event: %w", eventType, err)
		}

		b.broadcast(Frame{Event: string(eventType), Data: data})

		return nil
	}
}

func (b *Broadcaster) broadcast(frame Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for ch := range b.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Subscribe registers a new client and returns its frame channel. The channel
// is closed when the broadcaster shuts down.
func (b *Broadcaster) Subscribe() chan Frame {
	ch := make(chan Frame, clientBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)

		return ch
	}

	b.clients[ch] = struct{}{}

	return ch
}

// Unsubscribe detaches a client channel. Frames already buffered stay
// readable.
func (b *Broadcaster) Unsubscribe(ch chan Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.clients, ch)
}

// Close ends every connected stream. Further subscriptions get an already
// closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for ch := range b.clients {
		close(ch)
	}

	b.clients = make(map[chan Frame]struct{})
}
