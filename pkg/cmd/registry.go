// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"

	"github.com/cfreitas/attenda/pkg/actions/completetask"
	"github.com/cfreitas/attenda/pkg/actions/createdraft"
	"github.com/cfreitas/attenda/pkg/actions/createfollowup"
	"github.com/cfreitas/attenda/pkg/actions/createtask"
	"github.com/cfreitas/attenda/pkg/actions/schedulemeeting"
	"github.com/cfreitas/attenda/pkg/actions/sendemail"
	"github.com/cfreitas/attenda/pkg/actions/updatetask"
	"github.com/cfreitas/attenda/pkg/approval"
	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/protocol"
	"github.com/cfreitas/attenda/pkg/registry"
)

func nativeFactories(persist persistence.Persistence) []protocol.ExecutorFactory {
	return []protocol.ExecutorFactory{
		createtask.NewFactory(persist),
		updatetask.NewFactory(persist),
		completetask.NewFactory(persist),
		createdraft.NewFactory(persist),
		sendemail.NewFactory(persist),
		schedulemeeting.NewFactory(persist),
		createfollowup.NewFactory(persist),
	}
}

// NewRegistry creates an executor registry with the native workspace actions
// registered.
func NewRegistry(log *slog.Logger, persist persistence.Persistence) *registry.Registry {
	reg := registry.NewRegistry(log)

	for _, factory := range nativeFactories(persist) {
		reg.RegisterExecutor(factory)
	}

	return reg
}

// NewGateway creates an approval gateway with an executor and payload schema
// for every native action, so approved actions execute without further wiring.
func NewGateway(ctx context.Context, persist persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) (*approval.Gateway, error) {
	gateway := approval.NewGateway(persist, publisher, logger)

	for _, factory := range nativeFactories(persist) {
		if err := gateway.RegisterFactory(ctx, factory); err != nil {
			return nil, err
		}
	}

	return gateway, nil
}
