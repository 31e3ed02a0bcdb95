// Package pipelines holds the built-in pipeline definitions: inbox, meeting,
// task_triage and wellness. Steps are closures over the shared runtime
// dependencies; all looping, checkpointing and suspension behavior lives in
// the engine, definitions only declare steps and edges.
package pipelines

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cfreitas/attenda/pkg/approval"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/reasoner"
	"github.com/cfreitas/attenda/pkg/registry"
	"github.com/cfreitas/attenda/pkg/template"
	"github.com/cfreitas/attenda/pkg/wellness"
)

// Registered pipeline names. The router and the trigger rules address
// pipelines by these.
const (
	InboxName      = "inbox"
	MeetingName    = "meeting"
	TaskTriageName = "task_triage"
	WellnessName   = "wellness"
)

// Deps are the runtime capabilities pipeline steps close over.
type Deps struct {
	Persistence persistence.Persistence
	Reasoner    reasoner.Reasoner
	Wellness    *wellness.Evaluator
	Gateway     *approval.Gateway
	Executors   *registry.Registry
	Logger      *slog.Logger
}

// RegisterAll builds the built-in definitions and registers them.
func RegisterAll(reg *pipeline.Registry, deps Deps) error {
	deps.Logger = deps.Logger.With("module", "pipelines")

	for _, def := range []*pipeline.Definition{
		Inbox(deps),
		Meeting(deps),
		TaskTriage(deps),
		Wellness(deps),
	} {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("failed to register pipeline %s: %w", def.Name, err)
		}
	}

	return nil
}

// plannedAction is one decision a pipeline wants carried out. Queued plans
// live in the session context between iterations, so the encoded form must
// survive a JSON checkpoint round trip.
type plannedAction struct {
	Type    string
	Reason  string
	Payload map[string]any
}

func encodeActions(actions []plannedAction) []any {
	encoded := make([]any, 0, len(actions))

	for _, action := range actions {
		encoded = append(encoded, map[string]any{
			"type":    action.Type,
			"reason":  action.Reason,
			"payload": action.Payload,
		})
	}

	return encoded
}

func decodeActions(raw any) []plannedAction {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}

	actions := make([]plannedAction, 0, len(entries))

	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		payload, _ := fields["payload"].(map[string]any)

		actions = append(actions, plannedAction{
			Type:    mapString(fields, "type"),
			Reason:  mapString(fields, "reason"),
			Payload: payload,
		})
	}

	return actions
}

// dispatch carries out one planned action. Actions under the approval policy
// are queued on the gateway and recorded as deferred; the rest execute
// immediately through the registry. Failures are recorded in the delta, they
// never abort the session.
func (d Deps) dispatch(ctx context.Context, state *models.ExecutionState, delta *models.StepDelta, action plannedAction) {
	payload := action.Payload

	if rendered, err := template.RenderPayload(payload, state); err == nil {
		payload = rendered
	} else {
		delta.Reasoning = append(delta.Reasoning,
			fmt.Sprintf("Payload templating failed for %s, using raw payload: %v", action.Type, err))
	}

	sourceRef := ""
	if state.Item != nil {
		sourceRef = state.Item.ID
	}

	now := time.Now().UTC()

	if approval.RequiresApproval(action.Type, payload) {
		pending, err := d.Gateway.Enqueue(ctx, action.Type, payload, action.Reason, sourceRef)
		if err != nil {
			d.Logger.WarnContext(ctx, "Failed to queue action for approval",
				"action_type", action.Type, "error", err)
			delta.Actions = append(delta.Actions, models.ActionRecord{
				ActionType: action.Type,
				Payload:    payload,
				Result:     map[string]any{"error": err.Error()},
				RecordedAt: now,
			})
			delta.Reasoning = append(delta.Reasoning,
				fmt.Sprintf("Could not queue %s for approval: %v", action.Type, err))

			return
		}

		delta.Approvals = append(delta.Approvals, models.ActionRef{
			ActionID:   pending.ActionID,
			ActionType: action.Type,
		})
		delta.Actions = append(delta.Actions, models.ActionRecord{
			ActionType: action.Type,
			Payload:    payload,
			Deferred:   true,
			RecordedAt: now,
		})
		delta.Reasoning = append(delta.Reasoning,
			fmt.Sprintf("Queued %s for approval: %s", action.Type, action.Reason))

		return
	}

	executor, err := d.Executors.CreateExecutor(ctx, action.Type, nil)
	if err == nil {
		var result map[string]any

		result, err = executor.Execute(ctx, payload, d.Logger)
		if err == nil {
			delta.Actions = append(delta.Actions, models.ActionRecord{
				ActionType: action.Type,
				Payload:    payload,
				Result:     result,
				RecordedAt: now,
			})
			delta.Reasoning = append(delta.Reasoning,
				fmt.Sprintf("Executed %s: %s", action.Type, action.Reason))

			return
		}
	}

	d.Logger.WarnContext(ctx, "Action execution failed",
		"action_type", action.Type, "error", err)
	delta.Actions = append(delta.Actions, models.ActionRecord{
		ActionType: action.Type,
		Payload:    payload,
		Result:     map[string]any{"error": err.Error()},
		RecordedAt: now,
	})
	delta.Reasoning = append(delta.Reasoning,
		fmt.Sprintf("Action %s failed: %v", action.Type, err))
}

// Context readers. Checkpointed context round-trips through JSON, so values
// that start as typed Go slices or ints come back as []any and float64; the
// readers accept both shapes.

func itemPayload(state *models.ExecutionState) map[string]any {
	if state.Item == nil {
		return nil
	}

	return state.Item.Payload
}

func payloadText(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}

	return ""
}

func stateMap(state *models.ExecutionState, key string) map[string]any {
	value, _ := state.Context[key].(map[string]any)

	return value
}

func mapString(m map[string]any, key string) string {
	value, _ := m[key].(string)

	return value
}

func mapBool(m map[string]any, key string) bool {
	value, _ := m[key].(bool)

	return value
}

func mapFloat(m map[string]any, key string) float64 {
	switch value := m[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	default:
		return 0
	}
}

func mapSlice(m map[string]any, key string) []any {
	switch value := m[key].(type) {
	case []any:
		return value
	case []string:
		entries := make([]any, len(value))
		for i, entry := range value {
			entries[i] = entry
		}

		return entries
	default:
		return nil
	}
}

func mapStrings(m map[string]any, key string) []string {
	entries := mapSlice(m, key)
	values := make([]string, 0, len(entries))

	for _, entry := range entries {
		if value, ok := entry.(string); ok {
			values = append(values, value)
		}
	}

	return values
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}

	return false
}

const (
	maxTitleLength = 60
	maxLineLength  = 200
)

func clipTitle(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxTitleLength {
		return text[:maxTitleLength]
	}

	return text
}

func clipLine(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxLineLength {
		return text[:maxLineLength]
	}

	return text
}
