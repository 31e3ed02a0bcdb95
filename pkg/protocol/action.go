// Package protocol defines the interfaces between the engine and its
// pluggable action executors.
package protocol

import (
	"context"
	"log/slog"
)

// ActionExecutor performs one side-effecting workspace operation. Executors
// receive the rendered payload and report their outcome as a result map.
type ActionExecutor interface {
	Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error)
}

// ExecutorFactory builds executors and describes their payload schema.
type ExecutorFactory interface {
	// Create creates a new executor from the given configuration.
	Create(ctx context.Context, config map[string]any) (ActionExecutor, error)

	// ID returns the action type the factory serves.
	ID() string

	// Name returns the human readable name of the action.
	Name() string

	// Description returns a brief description of the action.
	Description() string

	// Schema returns the JSON schema for the action payload.
	Schema() map[string]any
}
