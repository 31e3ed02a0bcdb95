package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/persistence/file"
)

// fakeQueue implements the queue interface with in-memory lists. LPush
// prepends and BRPop pops from the tail, matching Redis list order.
type fakeQueue struct {
	mu      sync.Mutex
	lists   map[string][]string
	pingErr error
	popErr  error
	closed  bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{lists: map[string][]string{}}
}

func (q *fakeQueue) push(key string, payloads ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, payload := range payloads {
		q.lists[key] = append([]string{payload}, q.lists[key]...)
	}
}

func (q *fakeQueue) list(key string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]string(nil), q.lists[key]...)
}

func (q *fakeQueue) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", q.pingErr)
}

func (q *fakeQueue) BRPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.popErr != nil {
		return redis.NewStringSliceResult(nil, q.popErr)
	}

	key := keys[0]
	items := q.lists[key]
	if len(items) == 0 {
		return redis.NewStringSliceResult(nil, redis.Nil)
	}

	last := items[len(items)-1]
	q.lists[key] = items[:len(items)-1]

	return redis.NewStringSliceResult([]string{key, last}, nil)
}

func (q *fakeQueue) LPush(_ context.Context, key string, values ...any) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, value := range values {
		q.lists[key] = append([]string{fmt.Sprint(value)}, q.lists[key]...)
	}

	return redis.NewIntResult(int64(len(q.lists[key])), nil)
}

func (q *fakeQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true

	return nil
}

func newTestSource(t *testing.T, client *fakeQueue) (*Source, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())

	return &Source{
		client:      client,
		queueName:   DefaultQueue,
		persistence: persist,
		logger:      slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}, persist
}

func TestNewSource_ValidatesTheURL(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	_, err := NewSource(Config{URL: "not a url"}, nil, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")

	source, err := NewSource(Config{URL: "redis://localhost:6379/0"}, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, DefaultQueue, source.queueName)

	source, err = NewSource(Config{URL: "redis://localhost:6379/0", Queue: "work:incoming"}, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "work:incoming", source.queueName)
}

func TestSource_IngestsQueuedItems(t *testing.T) {
	t.Parallel()

	client := newFakeQueue()
	client.push(DefaultQueue,
		`{"id": "item-1", "type": "email", "payload": {"subject": "hello"}, "source": "gmail"}`,
		`{"id": "item-2", "type": "chat", "payload": {"text": "ping"}}`,
	)

	source, persist := newTestSource(t, client)
	ctx := t.Context()

	require.NoError(t, source.poll(ctx))
	require.NoError(t, source.poll(ctx))

	items, err := persist.WorkItemRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first, err := persist.WorkItemRepository().GetByID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "email", first.Type)
	assert.Equal(t, "gmail", first.Source)
	assert.Equal(t, map[string]any{"subject": "hello"}, first.Payload)
	assert.False(t, first.Processed)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := persist.WorkItemRepository().GetByID(ctx, "item-2")
	require.NoError(t, err)
	assert.Equal(t, "chat", second.Type)
	assert.Empty(t, second.Source)

	// Another poll on the drained queue is a quiet no-op.
	require.NoError(t, source.poll(ctx))
}

func TestSource_GeneratesAnIDWhenTheProducerOmitsOne(t *testing.T) {
	t.Parallel()

	client := newFakeQueue()
	client.push(DefaultQueue, `{"type": "email", "payload": {"subject": "no id"}}`)

	source, persist := newTestSource(t, client)
	ctx := t.Context()

	require.NoError(t, source.poll(ctx))

	items, err := persist.WorkItemRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Regexp(t, `^item_`, items[0].ID)
}

func TestSource_RoutesBadPayloadsToTheMalformedList(t *testing.T) {
	t.Parallel()

	client := newFakeQueue()
	client.push(DefaultQueue,
		`{not json at all`,
		`{"id": "item-typeless", "payload": {"subject": "missing type"}}`,
	)

	source, persist := newTestSource(t, client)
	ctx := t.Context()

	require.NoError(t, source.poll(ctx))
	require.NoError(t, source.poll(ctx))

	items, err := persist.WorkItemRepository().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "rejected payloads never reach the store")

	malformed := client.list(DefaultQueue + malformedSuffix)
	assert.Len(t, malformed, 2)
}

func TestSource_RequeuesThePayloadWhenTheStoreFails(t *testing.T) {
	t.Parallel()

	client := newFakeQueue()
	payload := `{"id": "item-1", "type": "email", "payload": {"subject": "hello"}}`
	client.push(DefaultQueue, payload)

	persist := file.NewPersistence(t.TempDir())
	source := &Source{
		client:      client,
		queueName:   DefaultQueue,
		persistence: &failingStore{Persistence: persist},
		logger:      slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}

	err := source.poll(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save work item")

	assert.Equal(t, []string{payload}, client.list(DefaultQueue), "the payload is back on the queue")
	assert.Empty(t, client.list(DefaultQueue+malformedSuffix))
}

func TestSource_StartAndStopAreIdempotent(t *testing.T) {
	t.Parallel()

	client := newFakeQueue()
	source, _ := newTestSource(t, client)
	ctx := t.Context()

	require.NoError(t, source.Start(ctx))
	require.NoError(t, source.Start(ctx))

	require.NoError(t, source.Stop(ctx))
	require.NoError(t, source.Stop(ctx))

	assert.True(t, client.closed)
}

func TestSource_StartFailsWhenRedisIsUnreachable(t *testing.T) {
	t.Parallel()

	client := newFakeQueue()
	client.pingErr = errors.New("connection refused")

	source, _ := newTestSource(t, client)

	err := source.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")

	// A failed start leaves the source stopped; Stop stays a no-op.
	require.NoError(t, source.Stop(t.Context()))
	assert.False(t, client.closed)
}

type failingStore struct {
	persistence.Persistence
}

func (s *failingStore) WorkItemRepository() persistence.WorkItemRepository {
	return failingItems{}
}

type failingItems struct{}

func (failingItems) Save(context.Context, *models.WorkItem) error {
	return errors.New("disk full")
}

func (failingItems) GetByID(context.Context, string) (*models.WorkItem, error) {
	return nil, errors.New("disk full")
}

func (failingItems) List(context.Context) ([]*models.WorkItem, error) {
	return nil, errors.New("disk full")
}

func (failingItems) ListEligible(context.Context, time.Time) ([]*models.WorkItem, error) {
	return nil, errors.New("disk full")
}

func (failingItems) Delete(context.Context, string) error {
	return errors.New("disk full")
}
