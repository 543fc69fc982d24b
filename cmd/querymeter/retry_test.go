package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/querymeter/internal/operation"
	"github.com/torosent/querymeter/internal/query"
	"github.com/torosent/querymeter/internal/solr"
)

func TestShouldRetry(t *testing.T) {
	wrap := func(err error) error { return &operation.QueryError{Err: err, Query: query.NewRequest()} }
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", wrap(context.Canceled), false},
		{"deadline", wrap(fmt.Errorf("get: %w", context.DeadlineExceeded)), false},
		{"bad request", wrap(&solr.RemoteError{StatusCode: 400}), false},
		{"unauthorized", wrap(&solr.RemoteError{StatusCode: 401}), false},
		{"forbidden", wrap(&solr.RemoteError{StatusCode: 403}), false},
		{"too many requests", wrap(&solr.RemoteError{StatusCode: 429}), true},
		{"server error", wrap(&solr.RemoteError{StatusCode: 503}), true},
		{"connection refused", wrap(&net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{"malformed body", wrap(solr.ErrMalformedResponse), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.want {
				t.Errorf("shouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyDelayHasBoundedJitter(t *testing.T) {
	policy := newRetryPolicy(3)
	if policy.MaxAttempts != 4 {
		t.Fatalf("MaxAttempts = %d, want 4", policy.MaxAttempts)
	}
	for attempt := 1; attempt <= 8; attempt++ {
		base := baseRetryDelay << (attempt - 1)
		if base > maxRetryDelay {
			base = maxRetryDelay
		}
		d := policy.DelayFunc(attempt, errors.New("x"))
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d delay %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestRunDoesNotRetryClientErrors(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.Error(w, `{"error":{"msg":"undefined field"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	queries := writeFile(t, t.TempDir(), "queries.txt", "q\n")

	var stdout bytes.Buffer
	err := run([]string{
		"--solr-url", srv.URL,
		"--queries-file", queries,
		"--use-facets=false",
		"--total", "1",
		"--retries", "3",
		"--log-level", "error",
	}, &stdout)
	if err == nil || !strings.Contains(err.Error(), "1 queries failed") {
		t.Fatalf("run() error = %v", err)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("server saw %d submissions, want 1", got)
	}
	if !strings.Contains(stdout.String(), "HTTP 400: 1") {
		t.Errorf("expected a single recorded failure:\n%s", stdout.String())
	}
}

func TestRunRetriesServerErrors(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"responseHeader":{"status":0,"QTime":1},"response":{"numFound":1,"docs":[]}}`))
	}))
	defer srv.Close()
	queries := writeFile(t, t.TempDir(), "queries.txt", "q\n")

	start := time.Now()
	err := run([]string{
		"--solr-url", srv.URL,
		"--queries-file", queries,
		"--use-facets=false",
		"--total", "1",
		"--retries", "2",
		"--log-level", "error",
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Errorf("server saw %d submissions, want 2", got)
	}
	if time.Since(start) < baseRetryDelay {
		t.Error("retry should wait for the backoff delay")
	}
}
