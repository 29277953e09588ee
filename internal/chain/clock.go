package chain

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Clock reports the timestamp of the latest block, so pool windows and
// vesting follow chain time rather than the local wall clock.
type Clock struct {
	headers HeaderReader
	retry   retrier
}

// NewClock creates a Clock that retries failed header reads with exponential backoff.
func NewClock(headers HeaderReader, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *Clock {
	return &Clock{headers: headers, retry: newRetrier(maxRetries, baseDelay, logger)}
}

// Now returns the latest block time in unix seconds.
func (c *Clock) Now(ctx context.Context) (int64, error) {
	var ts uint64
	err := c.retry.do(ctx, "latest header", func(ctx context.Context) error {
		header, err := c.headers.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}
		ts = header.Time
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("latest block time: %w", err)
	}
	if ts > math.MaxInt64 {
		return 0, fmt.Errorf("block time %d out of range", ts)
	}
	return int64(ts), nil
}
