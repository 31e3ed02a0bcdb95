package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cfreitas/attenda/pkg/channels/gochannel"
	"github.com/cfreitas/attenda/pkg/channels/kafka"
	"github.com/cfreitas/attenda/pkg/eventbus"
)

// NewEventBus creates the runtime event bus. The gochannel kind keeps events
// in-process and is the default; kafka fans them out across services, with
// the consumer group derived from serviceName.
func NewEventBus(kind, serviceName string, logger *slog.Logger) eventbus.EventBus {
	switch kind {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create GoChannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus kind: " + kind)
	}
}
