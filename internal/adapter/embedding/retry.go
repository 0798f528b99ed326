package embedding

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"hybridrag/internal/domain"
	"hybridrag/internal/port"
)

// RetryingEmbedder retries failed Embed calls with linear backoff.
// Context cancellation is never retried.
type RetryingEmbedder struct {
	next       port.Embedder
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewRetryingEmbedder(next port.Embedder, maxRetries int, backoff time.Duration, logger *zap.Logger) *RetryingEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingEmbedder{next: next, maxRetries: maxRetries, backoff: backoff, logger: logger}
}

func (e *RetryingEmbedder) Embed(ctx context.Context, text string, mode domain.EmbedMode) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying embedding",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))

			timer := time.NewTimer(time.Duration(attempt) * e.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		vec, err := e.next.Embed(ctx, text, mode)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *RetryingEmbedder) ModelName() string {
	return e.next.ModelName()
}
