package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	Attempts int
	Backoff  time.Duration // base delay, doubled after each failure
}

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so that Do returns it immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Do runs fn until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. Delays grow exponentially: backoff, 2*backoff, ...
func Do(ctx context.Context, p Policy, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if i == attempts-1 {
			break
		}

		wait := time.Duration(math.Pow(2, float64(i))) * p.Backoff
		logger.Warn("Operation failed, retrying...",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", wait),
			zap.Error(err),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}
