package batchsync

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/algebrix/internal/config"
	"github.com/abhisek/algebrix/internal/logging"
)

// RetryFetcher is a decorator that retries transient fetch errors with
// exponential backoff and jitter.
type RetryFetcher struct {
	inner  Fetcher
	config config.RetryConfig
	logger *zap.Logger
}

// WithRetry wraps a Fetcher with retry logic.
func WithRetry(f Fetcher, cfg config.RetryConfig, logger *zap.Logger) *RetryFetcher {
	return &RetryFetcher{inner: f, config: cfg, logger: logging.OrNop(logger)}
}

func (r *RetryFetcher) Source() string { return r.inner.Source() }

func (r *RetryFetcher) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	attempts := max(r.config.MaxAttempts, 1)

	for attempt := range attempts {
		body, err := r.inner.Fetch(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return nil, err
		}

		// No sleep after the final attempt.
		if attempt == attempts-1 {
			break
		}

		wait := r.backoff(attempt)
		r.logger.Debug("retrying batch fetch",
			zap.String("source", r.inner.Source()),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// shouldRetry retries only fetch errors marked transient.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// backoff computes the wait duration for the given attempt.
func (r *RetryFetcher) backoff(attempt int) time.Duration {
	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
