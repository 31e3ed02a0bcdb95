// Package retry wraps a Reasoner with per-call timeouts and bounded retries
// with exponential backoff. Exhaustion surfaces as a reasoner.Error wrapping
// the last cause; a failing backend never produces silent empty output.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cfreitas/attenda/pkg/reasoner"
)

const (
	defaultCallTimeout = 30 * time.Second
	maxDelay           = 30 * time.Second
)

// Wrapper retries a backend Reasoner. Every attempt runs under its own
// timeout so a stuck backend cannot hold a pipeline step indefinitely.
type Wrapper struct {
	inner       reasoner.Reasoner
	attempts    int
	baseDelay   time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

// New wraps inner with the given attempt budget and backoff base delay. The
// delay doubles between attempts up to 30s; each call is capped at 30s.
func New(inner reasoner.Reasoner, attempts int, baseDelay time.Duration, logger *slog.Logger) *Wrapper {
	if attempts < 1 {
		attempts = 1
	}

	return &Wrapper{
		inner:       inner,
		attempts:    attempts,
		baseDelay:   baseDelay,
		callTimeout: defaultCallTimeout,
		logger:      logger.With("module", "reasoner_retry"),
	}
}

// Classify retries the backend Classify until it succeeds or the attempt
// budget runs out.
func (w *Wrapper) Classify(ctx context.Context, text string) (reasoner.Classification, error) {
	var result reasoner.Classification

	err := w.do(ctx, "classify", func(callCtx context.Context) error {
		var callErr error

		result, callErr = w.inner.Classify(callCtx, text)

		return callErr
	})
	if err != nil {
		return reasoner.Classification{}, err
	}

	return result, nil
}

// Generate retries the backend Generate until it succeeds or the attempt
// budget runs out.
func (w *Wrapper) Generate(ctx context.Context, prompt string) (string, error) {
	var result string

	err := w.do(ctx, "generate", func(callCtx context.Context) error {
		var callErr error

		result, callErr = w.inner.Generate(callCtx, prompt)

		return callErr
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

func (w *Wrapper) do(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= w.attempts; attempt++ {
		if attempt > 1 {
			delay := w.delayFor(attempt)
			w.logger.InfoContext(ctx, "Retrying reasoner call",
				"op", op, "attempt", attempt, "max_attempts", w.attempts, "delay", delay)

			select {
			case <-ctx.Done():
				return reasoner.NewError(op, ctx.Err())
			case <-time.After(delay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
		lastErr = call(callCtx)

		cancel()

		if lastErr == nil {
			return nil
		}

		// The parent context ending makes further attempts pointless.
		if ctx.Err() != nil {
			return reasoner.NewError(op, ctx.Err())
		}
	}

	return reasoner.NewError(op, lastErr)
}

// delayFor returns the backoff before the given attempt: the base delay
// before attempt 2, doubling afterwards, capped at maxDelay.
func (w *Wrapper) delayFor(attempt int) time.Duration {
	delay := w.baseDelay << (attempt - 2)
	if delay > maxDelay || delay < 0 {
		delay = maxDelay
	}

	return delay
}
