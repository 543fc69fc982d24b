package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(err error)
}

// ZapFailureLogger logs each failure at warn level.
type ZapFailureLogger struct {
	Logger *zap.Logger
}

func (z ZapFailureLogger) LogFailure(err error) {
	if z.Logger == nil {
		return
	}
	z.Logger.Warn("query failed", zap.Error(err), zap.Bool("fatal", IsFatal(err)))
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including the first
	Delay       time.Duration                              // fixed delay when DelayFunc is nil
	ShouldRetry func(error) bool                           // nil retries every non-fatal error
	DelayFunc   func(attempt int, err error) time.Duration // attempt is 1-based
}

// ExponentialBackoff doubles base on every attempt up to limit.
func ExponentialBackoff(base, limit time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		d := base << (attempt - 1)
		if d <= 0 || d > limit {
			return limit
		}
		return d
	}
}

type retryRequester struct {
	inner  Requester
	policy RetryPolicy
}

// WithRetry re-runs failed attempts. Fatal errors are returned immediately.
func WithRetry(req Requester, policy RetryPolicy) Requester {
	if policy.MaxAttempts <= 1 {
		return req
	}
	return &retryRequester{inner: req, policy: policy}
}

func (r *retryRequester) Do(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = r.inner.Do(ctx)
		if lastErr == nil || IsFatal(lastErr) {
			return lastErr
		}
		if attempt == r.policy.MaxAttempts {
			break
		}
		if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
			return lastErr
		}

		delay := r.policy.Delay
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, lastErr)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return lastErr
}

type loggingRequester struct {
	inner  Requester
	logger FailureLogger
}

// WithLogging reports every failed attempt to logger.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return &loggingRequester{inner: req, logger: logger}
}

func (l *loggingRequester) Do(ctx context.Context) error {
	err := l.inner.Do(ctx)
	if err != nil {
		l.logger.LogFailure(err)
	}
	return err
}
