package operation

import (
	"context"
	"sync"
	"time"

	"github.com/torosent/querymeter/internal/query"
)

// fakeExecutor records every call made by the operation.
type fakeExecutor struct {
	mu        sync.Mutex
	extra     []query.Param
	queryType string
	resp      *query.Response
	err       error

	submitted []*query.Request
	successes []success
	failures  []*QueryError
}

type success struct {
	resp    *query.Response
	elapsed time.Duration
}

func (f *fakeExecutor) ExtraParameters() []query.Param { return f.extra }
func (f *fakeExecutor) QueryType() string              { return f.queryType }

func (f *fakeExecutor) Submit(_ context.Context, req *query.Request) (*query.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return f.resp, f.err
}

func (f *fakeExecutor) NotifyQueryExecuted(resp *query.Response, elapsed time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, success{resp: resp, elapsed: elapsed})
}

func (f *fakeExecutor) NotifyError(err *QueryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, err)
}

// fixed always returns the same string.
type fixed string

func (f fixed) RandomQuery() string      { return string(f) }
func (f fixed) RandomFacetField() string { return string(f) }
