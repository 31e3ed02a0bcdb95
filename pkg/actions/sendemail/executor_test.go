package sendemail_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/actions/sendemail"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence/file"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestExecutor_Execute_SendsDraft(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	draft := &models.Draft{
		ID:        models.NewID("draft"),
		To:        "ana@example.com",
		Subject:   "Re: budget review",
		Body:      "Numbers attached.",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, persist.DraftRepository().Save(t.Context(), draft))

	executor, err := sendemail.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	result, err := executor.Execute(t.Context(), map[string]any{"draft_id": draft.ID}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, true, result["sent"])
	assert.NotContains(t, result, "already_sent")

	stored, err := persist.DraftRepository().GetByID(t.Context(), draft.ID)
	require.NoError(t, err)
	assert.True(t, stored.Sent)
	require.NotNil(t, stored.SentAt)

	// A second send of the same draft is a no-op.
	result, err = executor.Execute(t.Context(), map[string]any{"draft_id": draft.ID}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, true, result["already_sent"])

	rechecked, err := persist.DraftRepository().GetByID(t.Context(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.SentAt.UTC(), rechecked.SentAt.UTC())
}

func TestExecutor_Execute_InlineSend(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())

	executor, err := sendemail.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	result, err := executor.Execute(t.Context(), map[string]any{
		"to":      "team@example.com",
		"subject": "Standup moved to 10:30",
		"body":    "Room 4 is booked until 10:15.",
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, true, result["sent"])

	stored, err := persist.DraftRepository().GetByID(t.Context(), result["draft_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", stored.To)
	assert.True(t, stored.Sent)
	require.NotNil(t, stored.SentAt)
}

func TestExecutor_Execute_NothingToSend(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())

	executor, err := sendemail.NewFactory(persist).Create(t.Context(), nil)
	require.NoError(t, err)

	_, err = executor.Execute(t.Context(), map[string]any{"body": "orphan text"}, testLogger())
	assert.ErrorIs(t, err, sendemail.ErrNothingToSend)
}
