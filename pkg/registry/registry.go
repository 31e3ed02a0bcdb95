// Package registry tracks the action executors available to pipelines and
// the approval gateway.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cfreitas/attenda/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ExecutorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.ExecutorFactory),
	}
}

// RegisterExecutor registers a factory under its action type. Registering the
// same type again replaces the earlier factory.
func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) {
	r.factories[factory.ID()] = factory
}

// CreateExecutor builds an executor for the given action type.
func (r *Registry) CreateExecutor(ctx context.Context, actionType string, config map[string]any) (protocol.ActionExecutor, error) {
	factory, ok := r.factories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(ctx, config)
}

// Registered reports whether an executor exists for the action type.
func (r *Registry) Registered(actionType string) bool {
	_, ok := r.factories[actionType]

	return ok
}

// AvailableExecutors returns the registered action types in sorted order.
func (r *Registry) AvailableExecutors() []string {
	types := make([]string, 0, len(r.factories))
	for actionType := range r.factories {
		types = append(types, actionType)
	}

	sort.Strings(types)

	return types
}

// Schema returns the payload schema for the given action type.
func (r *Registry) Schema(actionType string) (map[string]any, error) {
	factory, ok := r.factories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Schema(), nil
}
