package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
)

// captureSubscriber records Handle registrations so tests can drive the
// relays directly.
type captureSubscriber struct {
	handlers map[events.EventType]eventbus.EventHandler
}

func newCaptureSubscriber() *captureSubscriber {
	return &captureSubscriber{handlers: make(map[events.EventType]eventbus.EventHandler)}
}

func (s *captureSubscriber) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	s.handlers[eventType] = handler

	return nil
}

func (s *captureSubscriber) Subscribe(context.Context) error {
	return nil
}

func newTestBroadcaster() *Broadcaster {
	return NewBroadcaster(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestBroadcaster_AttachCoversEveryEventType(t *testing.T) {
	t.Parallel()

	broadcaster := newTestBroadcaster()
	bus := newCaptureSubscriber()

	require.NoError(t, broadcaster.Attach(bus))

	assert.Len(t, bus.handlers, len(streamedEvents))

	for _, eventType := range streamedEvents {
		assert.Contains(t, bus.handlers, eventType)
	}
}

func TestBroadcaster_RelayFansOutToEverySubscriber(t *testing.T) {
	t.Parallel()

	broadcaster := newTestBroadcaster()
	bus := newCaptureSubscriber()
	require.NoError(t, broadcaster.Attach(bus))

	first := broadcaster.Subscribe()
	second := broadcaster.Subscribe()

	event := events.SessionCompleted{
		BaseEvent:    events.NewBaseEvent(events.SessionCompletedEvent, "sess_1"),
		PipelineName: "inbox",
		ItemID:       "item-1",
		ActionsTaken: 2,
	}
	require.NoError(t, bus.handlers[events.SessionCompletedEvent](t.Context(), event))

	for _, sub := range []chan Frame{first, second} {
		require.Len(t, sub, 1)

		frame := <-sub
		assert.Equal(t, "session.completed", frame.Event)

		var decoded events.SessionCompleted
		require.NoError(t, json.Unmarshal(frame.Data, &decoded))
		assert.Equal(t, "sess_1", decoded.SessionID)
		assert.Equal(t, "inbox", decoded.PipelineName)
		assert.Equal(t, 2, decoded.ActionsTaken)
	}
}

func TestBroadcaster_SlowClientLosesFramesInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	broadcaster := newTestBroadcaster()
	sub := broadcaster.Subscribe()

	for i := 0; i < clientBuffer+5; i++ {
		broadcaster.broadcast(Frame{Event: "check.triggered", Data: fmt.Appendf(nil, `{"seq":%d}`, i)})
	}

	// The buffered frames are the oldest ones, everything past the buffer
	// was dropped.
	assert.Len(t, sub, clientBuffer)

	frame := <-sub
	assert.JSONEq(t, `{"seq":0}`, string(frame.Data))
}

func TestBroadcaster_UnsubscribedClientStopsReceiving(t *testing.T) {
	t.Parallel()

	broadcaster := newTestBroadcaster()
	sub := broadcaster.Subscribe()

	broadcaster.Unsubscribe(sub)
	broadcaster.broadcast(Frame{Event: "monitor.started", Data: []byte(`{}`)})

	assert.Empty(t, sub)
}

func TestBroadcaster_CloseEndsEveryStream(t *testing.T) {
	t.Parallel()

	broadcaster := newTestBroadcaster()
	first := broadcaster.Subscribe()
	second := broadcaster.Subscribe()

	broadcaster.Close()

	_, open := <-first
	assert.False(t, open)
	_, open = <-second
	assert.False(t, open)

	// Closing twice and broadcasting after close are quiet no-ops.
	broadcaster.Close()
	broadcaster.broadcast(Frame{Event: "monitor.stopped", Data: []byte(`{}`)})

	late := broadcaster.Subscribe()
	_, open = <-late
	assert.False(t, open)
}
