package operation

import (
	"fmt"

	"github.com/torosent/querymeter/internal/query"
)

// QueryError is a failed submission together with the request that was
// attempted.
type QueryError struct {
	Err   error
	Query *query.Request
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.Query.String(), e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ContractViolationError reports a response the search service should never
// have produced. It is fatal to the run.
type ContractViolationError struct {
	QTime  int64
	Query  *query.Request
	Reason string
}

func (e *ContractViolationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid response for query %q: %s", e.Query.String(), e.Reason)
	}
	return fmt.Sprintf("the query returned less than 0 as QTime (%d) for query %q", e.QTime, e.Query.String())
}

// Fatal marks the error as one that must stop the run.
func (e *ContractViolationError) Fatal() bool {
	return true
}
