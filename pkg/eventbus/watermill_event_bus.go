package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cfreitas/attenda/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := newEventForType(eventType)
			if event == nil {
				msg.Nack()

				continue
			}

			err := json.Unmarshal(msg.Payload, event)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, event)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func newEventForType(eventType events.EventType) any {
	switch eventType {
	case events.ItemProcessingStartedEvent:
		return &events.ItemProcessingStarted{}
	case events.ItemDeadLetteredEvent:
		return &events.ItemDeadLettered{}
	case events.SessionStepCompletedEvent:
		return &events.SessionStepCompleted{}
	case events.SessionCompletedEvent:
		return &events.SessionCompleted{}
	case events.SessionErrorEvent:
		return &events.SessionError{}
	case events.SessionApprovalNeededEvent:
		return &events.SessionApprovalNeeded{}
	case events.TriggerInvokedEvent:
		return &events.TriggerInvoked{}
	case events.TriggerDepthExceededEvent:
		return &events.TriggerDepthExceeded{}
	case events.MonitorStartedEvent:
		return &events.MonitorStarted{}
	case events.MonitorStoppedEvent:
		return &events.MonitorStopped{}
	case events.MonitorCheckCompleteEvent:
		return &events.MonitorCheckComplete{}
	case events.CheckTriggeredEvent:
		return &events.CheckTriggered{}
	case events.CheckFailedEvent:
		return &events.CheckFailed{}
	case events.ApprovalDecidedEvent:
		return &events.ApprovalDecided{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
