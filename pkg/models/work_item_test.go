package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkItem_Validate(t *testing.T) {
	valid := &WorkItem{ID: "item-1", Type: "email"}
	assert.NoError(t, valid.Validate())

	missingID := &WorkItem{Type: "email"}
	assert.ErrorIs(t, missingID.Validate(), ErrInvalidWorkItem)

	missingType := &WorkItem{ID: "item-1"}
	assert.ErrorIs(t, missingType.Validate(), ErrInvalidWorkItem)
}

func TestWorkItem_MarkProcessed(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	retry := now.Add(-time.Minute)

	item := &WorkItem{
		ID:            "item-1",
		Type:          "email",
		Attempts:      1,
		NextAttemptAt: &retry,
		FailureReason: "transient hiccup",
	}

	item.MarkProcessed(map[string]any{"pipeline": "inbox"}, now)

	assert.True(t, item.Processed)
	require.NotNil(t, item.ProcessedAt)
	assert.Equal(t, now, *item.ProcessedAt)
	assert.Equal(t, "inbox", item.Result["pipeline"])
	assert.Nil(t, item.NextAttemptAt)
	assert.Empty(t, item.FailureReason)
	assert.False(t, item.Eligible(now))
}

func TestWorkItem_MarkFailed_BacksOffThenDeadLetters(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	item := &WorkItem{ID: "item-1", Type: "email"}

	item.MarkFailed("router exploded", now)
	assert.Equal(t, 1, item.Attempts)
	assert.False(t, item.Dead)
	require.NotNil(t, item.NextAttemptAt)
	assert.Equal(t, now.Add(time.Minute), *item.NextAttemptAt)
	assert.False(t, item.Eligible(now), "item must cool off after a failure")
	assert.True(t, item.Eligible(now.Add(2*time.Minute)))

	item.MarkFailed("router exploded", now)
	assert.Equal(t, 2, item.Attempts)
	assert.False(t, item.Dead)
	require.NotNil(t, item.NextAttemptAt)
	assert.Equal(t, now.Add(2*time.Minute), *item.NextAttemptAt, "backoff doubles per attempt")

	item.MarkFailed("router exploded", now)
	assert.Equal(t, 3, item.Attempts)
	assert.True(t, item.Dead)
	assert.Nil(t, item.NextAttemptAt)
	assert.Equal(t, "router exploded", item.FailureReason)
	assert.False(t, item.Eligible(now.Add(time.Hour)), "dead items never come back")
}

func TestWorkItem_Eligible(t *testing.T) {
	now := time.Now()

	fresh := &WorkItem{ID: "item-1", Type: "email"}
	assert.True(t, fresh.Eligible(now))

	processed := &WorkItem{ID: "item-2", Type: "email", Processed: true}
	assert.False(t, processed.Eligible(now))

	dead := &WorkItem{ID: "item-3", Type: "email", Dead: true}
	assert.False(t, dead.Eligible(now))

	future := now.Add(time.Minute)
	backingOff := &WorkItem{ID: "item-4", Type: "email", NextAttemptAt: &future}
	assert.False(t, backingOff.Eligible(now))
	assert.True(t, backingOff.Eligible(now.Add(2*time.Minute)))
}
