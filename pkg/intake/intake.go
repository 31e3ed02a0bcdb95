// Package intake bridges an external Redis list into the work item store.
// Producers LPUSH JSON work items onto the list; the source BRPops them,
// validates them and persists them for the monitor to pick up. Payloads that
// do not decode or validate are pushed to the malformed list instead of being
// dropped.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// DefaultQueue is the list external producers push work items onto.
const DefaultQueue = "attenda:intake"

// malformedSuffix names the side list holding rejected payloads.
const malformedSuffix = ":malformed"

const (
	popBlock       = time.Second
	connectTimeout = 5 * time.Second
	retryDelay     = time.Second
)

// queue is the subset of the Redis client the source uses.
type queue interface {
	Ping(ctx context.Context) *redis.StatusCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Close() error
}

// Config selects the Redis endpoint and the list to consume.
type Config struct {
	URL   string
	Queue string
}

// Source consumes the intake list and writes work items into the store.
type Source struct {
	client      queue
	queueName   string
	persistence persistence.Persistence
	logger      *slog.Logger

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSource creates a Source from the Redis URL in cfg. The connection is not
// touched until Start.
func NewSource(cfg Config, persist persistence.Persistence, logger *slog.Logger) (*Source, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	queueName := cfg.Queue
	if queueName == "" {
		queueName = DefaultQueue
	}

	return &Source{
		client:      redis.NewClient(opts),
		queueName:   queueName,
		persistence: persist,
		logger:      logger.With("module", "intake", "queue", queueName),
	}, nil
}

// Start pings Redis and spawns the consumer goroutine. Starting a running
// source is a no-op.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.stopCh = make(chan struct{})
	s.started = true
	s.wg.Add(1)

	go s.consume(ctx, s.stopCh)

	s.logger.InfoContext(ctx, "Intake source started")

	return nil
}

// Stop halts the consumer, waits for it to drain and closes the client.
// Stopping a stopped source is a no-op.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()

		return nil
	}

	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	if err := s.client.Close(); err != nil {
		s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
	}

	s.logger.InfoContext(ctx, "Intake source stopped")

	return nil
}

func (s *Source) consume(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
			if err := s.poll(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Error consuming intake queue", "error", err)
				time.Sleep(retryDelay)
			}
		}
	}
}

// poll blocks up to one second for the next payload and processes it. An
// empty queue is not an error.
func (s *Source) poll(ctx context.Context) error {
	result, err := s.client.BRPop(ctx, popBlock, s.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop from intake queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	return s.ingest(ctx, result[1])
}

// ingest decodes and persists one payload. Undecodable or invalid payloads go
// to the malformed list; a store failure requeues the payload so it is not
// lost while the store is down.
func (s *Source) ingest(ctx context.Context, payload string) error {
	// Producers only describe the work; the processing bookkeeping always
	// starts clean.
	var incoming struct {
		ID      string         `json:"id"`
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
		Source  string         `json:"source"`
	}

	if err := json.Unmarshal([]byte(payload), &incoming); err != nil {
		s.reject(ctx, payload, fmt.Sprintf("undecodable payload: %v", err))

		return nil
	}

	item := models.WorkItem{
		ID:      incoming.ID,
		Type:    incoming.Type,
		Payload: incoming.Payload,
		Source:  incoming.Source,
	}
	if item.ID == "" {
		item.ID = models.NewID("item")
	}

	if err := item.Validate(); err != nil {
		s.reject(ctx, payload, err.Error())

		return nil
	}

	if err := s.persistence.WorkItemRepository().Save(ctx, &item); err != nil {
		if pushErr := s.client.LPush(ctx, s.queueName, payload).Err(); pushErr != nil {
			s.logger.ErrorContext(ctx, "Failed to requeue item after store error",
				"item_id", item.ID, "error", pushErr)
		}

		return fmt.Errorf("failed to save work item %s: %w", item.ID, err)
	}

	s.logger.InfoContext(ctx, "Work item ingested", "item_id", item.ID, "item_type", item.Type)

	return nil
}

// reject pushes an unusable payload to the malformed list so it can be
// inspected later.
func (s *Source) reject(ctx context.Context, payload, reason string) {
	s.logger.WarnContext(ctx, "Rejecting malformed intake payload", "reason", reason)

	if err := s.client.LPush(ctx, s.queueName+malformedSuffix, payload).Err(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to push payload to malformed list", "error", err)
	}
}
