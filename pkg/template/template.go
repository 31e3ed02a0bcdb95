// Package template provides templating for action payloads and generated
// messages, resolved against the session state.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
)

// RenderWithState renders the input against the session state. Steps expose
// their findings through .context; the routed work item is under .item.
func RenderWithState(input string, state *models.ExecutionState) (any, error) {
	data := map[string]any{
		"context": state.Context,
		"env":     getEnvVars(),
		"session": map[string]any{
			"id":        state.SessionID,
			"pipeline":  state.PipelineName,
			"iteration": state.Iteration,
		},
	}

	if state.Item != nil {
		data["item"] = map[string]any{
			"id":      state.Item.ID,
			"type":    state.Item.Type,
			"payload": state.Item.Payload,
			"source":  state.Item.Source,
		}
	}

	return Render(input, data)
}

// RenderPayload renders every templated string value in an action payload.
// Nested maps are walked; non-string values pass through untouched.
func RenderPayload(payload map[string]any, state *models.ExecutionState) (map[string]any, error) {
	rendered := make(map[string]any, len(payload))

	for key, value := range payload {
		switch v := value.(type) {
		case string:
			if !NeedsTemplating(v) {
				rendered[key] = v

				continue
			}

			result, err := RenderWithState(v, state)
			if err != nil {
				return nil, fmt.Errorf("failed to render payload field %s: %w", key, err)
			}

			rendered[key] = result
		case map[string]any:
			nested, err := RenderPayload(v, state)
			if err != nil {
				return nil, err
			}

			rendered[key] = nested
		default:
			rendered[key] = value
		}
	}

	return rendered, nil
}

// NeedsTemplating checks if a string contains template expressions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("payload").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}
				num := make([]byte, 1)
				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := buf.String()

	// Try to parse as JSON if it looks like JSON
	result = strings.TrimSpace(result)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	// Try to parse as number
	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	// Try to parse as boolean
	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// getEnvVars returns environment variables as a map.
func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
