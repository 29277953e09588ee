package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const maxBackoff = 10 * time.Second

// retrier re-runs node calls with exponential backoff. Caller cancellation
// is never retried.
type retrier struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetrier(maxRetries int, baseDelay time.Duration, logger *zap.Logger) retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retrier{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

func (r retrier) do(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := r.baseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Debug("node call recovered", zap.String("op", op), zap.Int("attempt", attempt))
			}
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt > r.maxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
		}

		r.logger.Warn("node call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}
