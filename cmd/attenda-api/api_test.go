package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/cmd"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence/file"
	"github.com/cfreitas/attenda/pkg/web"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	persist := file.NewPersistence(t.TempDir())
	bus := cmd.NewEventBus("gochannel", "attenda-api-test", logger)

	t.Cleanup(func() { _ = bus.Close() })

	api, err := NewAPI(t.Context(), logger, persist, bus, nil, Config{})
	require.NoError(t, err)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Attenda API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status   string `json:"status"`
		Checkers struct {
			Store     string `json:"store"`
			Pipelines string `json:"pipelines"`
		} `json:"checkers"`
	}

	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Checkers.Store)
	assert.Equal(t, "4 pipelines registered", health.Checkers.Pipelines)
}

func TestAPI_GetApprovals_Empty(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/approvals", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var listing struct {
		Approvals []models.PendingAction `json:"approvals"`
		Count     int                    `json:"count"`
	}

	err = json.NewDecoder(resp.Body).Decode(&listing)
	require.NoError(t, err)
	assert.Empty(t, listing.Approvals)
	assert.Zero(t, listing.Count)
}

func TestAPI_SubmitItem_Lifecycle(t *testing.T) {
	app := setupTestApp(t)

	payload, err := json.Marshal(map[string]any{
		"id":      "item-api-1",
		"type":    "email",
		"source":  "manual",
		"payload": map[string]any{"subject": "weekly notes"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var result web.ItemRunResult

	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	require.NotNil(t, result.Item)
	require.NotNil(t, result.Session)
	assert.True(t, result.Item.Processed)
	assert.Equal(t, "inbox", result.Session.PipelineName)
	assert.Equal(t, models.SessionStatusCompleted, result.Session.Status)

	req = httptest.NewRequest(http.MethodGet, "/sessions/"+result.Session.SessionID, nil)
	req.Header.Set("Accept", "application/json")
	sessionResp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = sessionResp.Body.Close() }()

	assert.Equal(t, http.StatusOK, sessionResp.StatusCode)

	var session models.ExecutionState

	err = json.NewDecoder(sessionResp.Body).Decode(&session)
	require.NoError(t, err)
	assert.Equal(t, "inbox", session.PipelineName)
	require.NotNil(t, session.Item)
	assert.Equal(t, "item-api-1", session.Item.ID)
}

func TestAPI_GetSession_NotFound(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess_missing", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/approvals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
