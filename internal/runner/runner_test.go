package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/querymeter/internal/runner"
)

// fakeRequester simulates a request with fixed latency.
type fakeRequester struct {
	latency   time.Duration
	calls     *int64
	failAfter int64 // if >0, fails after this many calls
}

func (f *fakeRequester) Do(ctx context.Context) error {
	n := atomic.AddInt64(f.calls, 1)
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.failAfter > 0 && n > f.failAfter {
		return errors.New("boom")
	}
	return nil
}

type fatalErr struct{}

func (fatalErr) Error() string { return "server contract broken" }
func (fatalErr) Fatal() bool   { return true }

func TestRunnerRespectsTotalRequests(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency:   4,
		TotalRequests: 25,
		Requester:     &fakeRequester{latency: time.Millisecond, calls: &calls},
	})
	res := r.Run(context.Background())
	if res.Total != 25 {
		t.Fatalf("expected total 25, got %d", res.Total)
	}
	if calls != 25 {
		t.Fatalf("expected requester called 25 times, got %d", calls)
	}
	if res.Err != nil {
		t.Fatalf("unexpected fatal error %v", res.Err)
	}
}

func TestRunnerCountsErrors(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency:   1,
		TotalRequests: 10,
		Requester:     &fakeRequester{calls: &calls, failAfter: 6},
	})
	res := r.Run(context.Background())
	if res.Errors != 4 {
		t.Fatalf("expected 4 errors, got %d", res.Errors)
	}
	if res.Err != nil {
		t.Fatalf("ordinary failures must not stop the run: %v", res.Err)
	}
}

func TestRunnerHonorsDuration(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency: 10,
		Duration:    50 * time.Millisecond,
		Requester:   &fakeRequester{latency: 5 * time.Millisecond, calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if res.Duration <= 0 {
		t.Fatalf("result duration not recorded")
	}
	if res.Total <= 0 {
		t.Fatalf("expected some requests executed")
	}
}

func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	rateLimit := 100
	duration := 100 * time.Millisecond
	r := runner.New(runner.Options{
		Concurrency:    20,
		Duration:       duration,
		RatePerSecond:  rateLimit,
		Requester:      &fakeRequester{calls: &calls},
		LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	})
	res := r.Run(context.Background())
	maxExpected := int(float64(rateLimit) * duration.Seconds() * 1.2)
	if int(res.Total) > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", res.Total, maxExpected)
	}
	if calls != res.Total {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Total)
	}
}

func TestRunnerStopsOnFatalError(t *testing.T) {
	var calls int64
	req := runner.RequesterFunc(func(ctx context.Context) error {
		if atomic.AddInt64(&calls, 1) == 3 {
			return fmt.Errorf("execute: %w", fatalErr{})
		}
		return nil
	})
	r := runner.New(runner.Options{Concurrency: 1, TotalRequests: 100, Requester: req})
	res := r.Run(context.Background())

	var fe fatalErr
	if !errors.As(res.Err, &fe) {
		t.Fatalf("Result.Err = %v, want the fatal error", res.Err)
	}
	if res.Total >= 100 {
		t.Fatalf("run should stop early, total=%d", res.Total)
	}
	if atomic.LoadInt64(&calls) > 4 {
		t.Fatalf("requester kept running after fatal error: %d calls", calls)
	}
}

func TestRunnerFollowsLoadPatterns(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency: 2,
		LoadPatterns: []runner.LoadPattern{
			{Type: runner.LoadPatternTypeStep, Steps: []runner.LoadStep{
				{RPS: 50, Duration: 100 * time.Millisecond},
				{RPS: 100, Duration: 100 * time.Millisecond},
			}},
		},
		Requester: &fakeRequester{calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("schedule should end the run, took %s", elapsed)
	}
	if res.Total == 0 {
		t.Fatal("expected some requests executed")
	}
	if res.Total > 60 {
		t.Fatalf("pattern pacing exceeded: total=%d", res.Total)
	}
}

func TestPoissonArrival(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency:    2,
		TotalRequests:  20,
		RatePerSecond:  1000,
		ArrivalModel:   runner.ArrivalModelPoisson,
		PoissonSampler: func() float64 { return 1 },
		Requester:      &fakeRequester{calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	if res.Total != 20 {
		t.Fatalf("expected 20, got %d", res.Total)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("poisson gaps of 1ms should take >= ~20ms, took %s", elapsed)
	}
}

func TestIsFatal(t *testing.T) {
	if runner.IsFatal(nil) || runner.IsFatal(errors.New("x")) {
		t.Fatal("plain errors are not fatal")
	}
	if !runner.IsFatal(fmt.Errorf("wrapped: %w", fatalErr{})) {
		t.Fatal("wrapped fatal error not detected")
	}
}
