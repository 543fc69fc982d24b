// Package operation implements the query operation: the unit of work a load
// run repeats. Each invocation builds one randomized search request, submits
// it, times it and reports the outcome to a Notifier.
//
// # Modes
//
// In [ModeInternal] the request is assembled by a [Builder] from a random base
// query plus optional facet, filter and extra-parameter enrichment. In
// [ModeExternal] a complete parameter string is taken from the query source
// and handed to a [Parser]; no enrichment is applied.
//
// # Errors
//
// Transport failures are reported through [Notifier.NotifyError] as a
// [*QueryError] and Execute returns false with a nil error. A response whose
// QTime is negative yields a [*ContractViolationError] instead: nothing is
// notified and the error is returned to the caller so the run can be aborted.
package operation

import (
	"context"
	"time"

	"github.com/torosent/querymeter/internal/query"
	"github.com/torosent/querymeter/internal/selector"
)

// Operation is a single repeatable load action.
type Operation interface {
	// Execute runs the action once. It reports whether it succeeded; a non-nil
	// error is reserved for faults that should stop the run.
	Execute(ctx context.Context) (bool, error)
}

// Mode selects how requests are produced.
type Mode string

const (
	ModeInternal Mode = "internal"
	ModeExternal Mode = "external"
)

// Config is the read-only operation configuration.
type Config struct {
	Mode                 Mode
	UseFacets            bool
	FacetMinCount        int
	FacetLimit           int
	FacetMethod          string
	UseFilterQueries     bool
	AddRandomExtraParams bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeInternal,
		UseFacets:            true,
		FacetMinCount:        1,
		FacetLimit:           8,
		UseFilterQueries:     true,
		AddRandomExtraParams: true,
	}
}

// Transport submits requests to the search service.
type Transport interface {
	// ExtraParameters are added to every structured request, in order.
	ExtraParameters() []query.Param
	QueryType() string
	Submit(ctx context.Context, req *query.Request) (*query.Response, error)
}

// Notifier receives the outcome of each invocation.
type Notifier interface {
	NotifyQueryExecuted(resp *query.Response, elapsed time.Duration)
	NotifyError(err *QueryError)
}

// Executor is a Transport that also receives notifications.
type Executor interface {
	Transport
	Notifier
}

// Parser turns an external query string into a request.
type Parser interface {
	Parse(s string) (*query.Request, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(string) (*query.Request, error)

func (f ParserFunc) Parse(s string) (*query.Request, error) { return f(s) }

// Sources groups the random selectors used to build requests.
type Sources struct {
	Queries       selector.QueryExtractor
	FilterQueries selector.QueryExtractor
	FacetFields   selector.FieldExtractor
	ExtraParams   selector.QueryExtractor
}
