package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/torosent/querymeter/internal/runner"
	"github.com/torosent/querymeter/internal/solr"
)

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newRetryPolicy(retries int) runner.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	backoff := runner.ExponentialBackoff(baseRetryDelay, maxRetryDelay)

	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: shouldRetry,
		DelayFunc: func(attempt int, err error) time.Duration {
			d := backoff(attempt, err)
			return d + source.jitter(d/2)
		},
	}
}

// shouldRetry retries transport failures, 429 and 5xx. Other Solr status
// codes come from the query or credentials and will not recover.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var remote *solr.RemoteError
	if errors.As(err, &remote) {
		if remote.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return remote.StatusCode >= 500
	}
	return true
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
