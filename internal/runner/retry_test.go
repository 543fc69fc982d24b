package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/torosent/querymeter/internal/runner"
)

type retryableRequester struct {
	attempts  *int64
	failUntil int64
	err       error
}

func (r *retryableRequester) Do(ctx context.Context) error {
	n := atomic.AddInt64(r.attempts, 1)
	if n <= r.failUntil {
		if r.err != nil {
			return r.err
		}
		return errors.New("transient")
	}
	return nil
}

func TestRetryRespectsMaxAttempts(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 3}
	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		DelayFunc:   func(attempt int, err error) time.Duration { return time.Duration(attempt) * time.Millisecond },
	}

	res := runner.New(runner.Options{
		Concurrency:   1,
		TotalRequests: 1,
		Requester:     runner.WithRetry(requester, policy),
	}).Run(context.Background())

	if res.Total != 1 || res.Errors != 0 {
		t.Errorf("total/errors = %d/%d, want 1/0", res.Total, res.Errors)
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetryExceedsMaxAttempts(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 100}
	wrapped := runner.WithRetry(requester, runner.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond})

	if err := wrapped.Do(context.Background()); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryShouldRetryStopsEarly(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 100}
	wrapped := runner.WithRetry(requester, runner.RetryPolicy{
		MaxAttempts: 5,
		ShouldRetry: func(error) bool { return false },
	})
	if err := wrapped.Do(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt got %d", attempts)
	}
}

func TestRetryNeverRepeatsFatalErrors(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 100, err: fatalErr{}}
	wrapped := runner.WithRetry(requester, runner.RetryPolicy{MaxAttempts: 5})
	err := wrapped.Do(context.Background())
	if !runner.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("fatal error retried: %d attempts", attempts)
	}
}

func TestRetryHonorsContextDuringDelay(t *testing.T) {
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 100}
	wrapped := runner.WithRetry(requester, runner.RetryPolicy{MaxAttempts: 5, Delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := wrapped.Do(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithRetrySingleAttemptIsPassthrough(t *testing.T) {
	requester := &retryableRequester{attempts: new(int64)}
	if got := runner.WithRetry(requester, runner.RetryPolicy{MaxAttempts: 1}); got != runner.Requester(requester) {
		t.Fatal("MaxAttempts <= 1 should return the requester unchanged")
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := runner.ExponentialBackoff(10*time.Millisecond, 50*time.Millisecond)
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		if got := backoff(i+1, nil); got != w {
			t.Errorf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestWithLoggingRecordsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var attempts int64
	requester := &retryableRequester{attempts: &attempts, failUntil: 1}
	wrapped := runner.WithLogging(requester, runner.ZapFailureLogger{Logger: zap.New(core)})

	_ = wrapped.Do(context.Background())
	_ = wrapped.Do(context.Background())

	if logs.Len() != 1 {
		t.Fatalf("expected 1 failure log, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "query failed" {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.ContextMap()["fatal"] != false {
		t.Errorf("fatal field = %v", entry.ContextMap()["fatal"])
	}
}
