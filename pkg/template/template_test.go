package template

import (
	"testing"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	// Test simple field access
	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	// Test boolean expression
	result, err = Render("{{ .isNew }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Test number field - always map to float
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_StringInterpolation(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"name": "John",
			"id":   123,
		},
		"action": "login",
	}

	// Test string construction
	result, err := Render("User {{.user.name}} performed {{.action}}", data)
	require.NoError(t, err)
	assert.Equal(t, "User John performed login", result)
}

func TestRender_ObjectConstruction(t *testing.T) {
	data := map[string]any{
		"subject": "deploy window",
		"count":   2,
	}

	result, err := Render(`{
		"title": "Follow up: {{ .subject }}",
		"open_items": {{ .count }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)

	require.True(t, ok)
	assert.Equal(t, "Follow up: deploy window", resultMap["title"])
	assert.Equal(t, 2.0, resultMap["open_items"])
}

func TestRenderWithState(t *testing.T) {
	item := &models.WorkItem{
		ID:   "item-1",
		Type: "email",
		Payload: map[string]any{
			"subject": "URGENT: prod down",
			"from":    "cto@example.com",
		},
	}

	state := models.NewExecutionState("inbox", item, 0)
	state.Apply(&models.StepDelta{Context: map[string]any{"priority": "P0"}})

	result, err := RenderWithState("{{ .item.payload.subject }}", state)
	require.NoError(t, err)
	assert.Equal(t, "URGENT: prod down", result)

	result, err = RenderWithState("{{ .context.priority }}", state)
	require.NoError(t, err)
	assert.Equal(t, "P0", result)

	result, err = RenderWithState("{{ .session.pipeline }}", state)
	require.NoError(t, err)
	assert.Equal(t, "inbox", result)
}

func TestRenderPayload(t *testing.T) {
	item := &models.WorkItem{ID: "item-1", Type: "email", Payload: map[string]any{"from": "alice@example.com"}}
	state := models.NewExecutionState("inbox", item, 0)
	state.Apply(&models.StepDelta{Context: map[string]any{"priority": "P1"}})

	payload := map[string]any{
		"to":       "{{ .item.payload.from }}",
		"priority": "{{ .context.priority }}",
		"plain":    "no templating here",
		"limit":    5,
		"nested": map[string]any{
			"ref": "{{ .item.id }}",
		},
	}

	rendered, err := RenderPayload(payload, state)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", rendered["to"])
	assert.Equal(t, "P1", rendered["priority"])
	assert.Equal(t, "no templating here", rendered["plain"])
	assert.Equal(t, 5, rendered["limit"])

	nested, ok := rendered["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "item-1", nested["ref"])
}

func TestRenderPayload_BadTemplate(t *testing.T) {
	state := models.NewExecutionState("inbox", nil, 0)

	_, err := RenderPayload(map[string]any{"bad": "{{ .unclosed"}, state)
	assert.Error(t, err)
}

func TestNeedsTemplating(t *testing.T) {
	assert.True(t, NeedsTemplating("{{ .context.priority }}"))
	assert.False(t, NeedsTemplating("plain text"))
}
