package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/eventbus"
	"github.com/cfreitas/attenda/pkg/events"
)

type captureBus struct {
	mu     sync.Mutex
	keys   []string
	events []eventbus.Event
}

func (b *captureBus) Publish(_ context.Context, key string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.keys = append(b.keys, key)
	b.events = append(b.events, event)

	return nil
}

func newTestScheduler() (*Scheduler, *captureBus) {
	bus := &captureBus{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewScheduler(bus, logger), bus
}

func TestScheduler_RegisterValidatesTheCadence(t *testing.T) {
	t.Parallel()

	sched, _ := newTestScheduler()

	err := sched.Register("deadline_monitor", "every five minutes", func(context.Context) ([]Finding, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")

	err = sched.Register("", "* * * * *", func(context.Context) ([]Finding, error) { return nil, nil })
	require.Error(t, err)

	err = sched.Register("deadline_monitor", "*/5 * * * *", nil)
	require.Error(t, err)

	require.NoError(t, sched.Register("deadline_monitor", "*/5 * * * *",
		func(context.Context) ([]Finding, error) { return nil, nil }))

	err = sched.Register("deadline_monitor", "*/10 * * * *",
		func(context.Context) ([]Finding, error) { return nil, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestScheduler_RunPublishesOneEventPerFinding(t *testing.T) {
	t.Parallel()

	sched, bus := newTestScheduler()
	require.NoError(t, sched.Register("deadline_monitor", "*/30 * * * *",
		func(context.Context) ([]Finding, error) {
			return []Finding{
				{Summary: "3 tasks due today (1 critical).", Priority: PriorityHigh, Payload: map[string]any{"due_today": 3}},
				{Summary: "7 tasks are overdue.", Priority: PriorityHigh},
			}, nil
		}))

	sched.runCheck(t.Context(), sched.checks[0])

	require.Len(t, bus.events, 2)
	assert.Equal(t, []string{"deadline_monitor", "deadline_monitor"}, bus.keys)

	first, ok := bus.events[0].(events.CheckTriggered)
	require.True(t, ok)
	assert.Equal(t, events.CheckTriggeredEvent, first.GetType())
	assert.Equal(t, "deadline_monitor", first.CheckName)
	assert.Equal(t, "3 tasks due today (1 critical).", first.Summary)
	assert.Equal(t, PriorityHigh, first.Priority)
	assert.Equal(t, map[string]any{"due_today": 3}, first.Payload)

	statuses := sched.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].RunCount)
	assert.NotNil(t, statuses[0].LastRunAt)
	assert.Empty(t, statuses[0].LastError)
}

func TestScheduler_FailedRunIsRecordedAndPublished(t *testing.T) {
	t.Parallel()

	sched, bus := newTestScheduler()

	calls := 0
	require.NoError(t, sched.Register("wellness_check", "0 * * * *",
		func(context.Context) ([]Finding, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("store unavailable")
			}

			return nil, nil
		}))

	sched.runCheck(t.Context(), sched.checks[0])

	require.Len(t, bus.events, 1)
	failed, ok := bus.events[0].(events.CheckFailed)
	require.True(t, ok)
	assert.Equal(t, "wellness_check", failed.CheckName)
	assert.Equal(t, "store unavailable", failed.Error)

	statuses := sched.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, "store unavailable", statuses[0].LastError)
	assert.NotNil(t, statuses[0].LastRunAt, "a failed run still counts as a run")

	// A later clean run clears the recorded error.
	sched.runCheck(t.Context(), sched.checks[0])

	statuses = sched.Status()
	assert.Equal(t, 2, statuses[0].RunCount)
	assert.Empty(t, statuses[0].LastError)
	assert.Len(t, bus.events, 1, "a quiet run publishes nothing")
}

func TestScheduler_QuietCheckPublishesNothing(t *testing.T) {
	t.Parallel()

	sched, bus := newTestScheduler()
	require.NoError(t, sched.Register("workload_check", "0 */2 * * *",
		func(context.Context) ([]Finding, error) { return nil, nil }))

	sched.runCheck(t.Context(), sched.checks[0])

	assert.Empty(t, bus.events)
}

func TestScheduler_StartAndStopAreIdempotent(t *testing.T) {
	t.Parallel()

	sched, _ := newTestScheduler()
	require.NoError(t, sched.Register("morning_briefing", "0 9 * * *",
		func(context.Context) ([]Finding, error) { return nil, nil }))

	ctx := t.Context()

	require.NoError(t, sched.Start(ctx))
	require.NoError(t, sched.Start(ctx))

	err := sched.Register("eod_summary", "0 17 * * *",
		func(context.Context) ([]Finding, error) { return nil, nil })
	require.Error(t, err, "registration is rejected while running")

	require.NoError(t, sched.Stop(ctx))
	require.NoError(t, sched.Stop(ctx))

	// Stopped schedulers accept registrations and can be started again.
	require.NoError(t, sched.Register("eod_summary", "0 17 * * *",
		func(context.Context) ([]Finding, error) { return nil, nil }))
	require.NoError(t, sched.Start(ctx))
	require.NoError(t, sched.Stop(ctx))
	assert.Len(t, sched.Status(), 2)
}

func TestScheduler_StatusBeforeAnyRun(t *testing.T) {
	t.Parallel()

	sched, _ := newTestScheduler()
	require.NoError(t, sched.Register("morning_briefing", "0 9 * * *",
		func(context.Context) ([]Finding, error) { return nil, nil }))

	statuses := sched.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, "morning_briefing", statuses[0].Name)
	assert.Equal(t, "0 9 * * *", statuses[0].Cadence)
	assert.Zero(t, statuses[0].RunCount)
	assert.Nil(t, statuses[0].LastRunAt)
}

func TestScheduler_RunsAreTimestampedWithTheInjectedClock(t *testing.T) {
	t.Parallel()

	sched, _ := newTestScheduler()
	fixed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return fixed }

	require.NoError(t, sched.Register("morning_briefing", "0 9 * * *",
		func(context.Context) ([]Finding, error) { return nil, nil }))

	sched.runCheck(t.Context(), sched.checks[0])

	statuses := sched.Status()
	require.NotNil(t, statuses[0].LastRunAt)
	assert.Equal(t, fixed, *statuses[0].LastRunAt)
}
