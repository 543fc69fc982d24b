package operation

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/querymeter/internal/query"
	"github.com/torosent/querymeter/internal/tracing"
)

// QueryOperation executes a single randomized query per invocation.
// One instance may be shared by many workers; it keeps no per-call state.
type QueryOperation struct {
	mode     Mode
	executor Executor
	queries  func() string
	builder  *Builder
	parser   Parser
	log      *zap.Logger
	tracer   trace.Tracer
	system   string
}

// Option customizes a QueryOperation.
type Option func(*QueryOperation)

// WithLogger sets the logger used for per-query diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *QueryOperation) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTracer wraps each submission in a client span.
func WithTracer(t trace.Tracer) Option {
	return func(o *QueryOperation) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithParser replaces the external query parser.
func WithParser(p Parser) Option {
	return func(o *QueryOperation) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithSystem names the search backend in span attributes.
func WithSystem(name string) Option {
	return func(o *QueryOperation) {
		if name != "" {
			o.system = name
		}
	}
}

// NewQueryOperation creates an operation bound to executor and sources.
func NewQueryOperation(executor Executor, sources Sources, cfg Config, opts ...Option) *QueryOperation {
	if cfg.Mode == "" {
		cfg.Mode = ModeInternal
	}
	op := &QueryOperation{
		mode:     cfg.Mode,
		executor: executor,
		queries:  func() string { return randomQuery(sources.Queries) },
		builder:  NewBuilder(cfg, executor, sources),
		parser:   ParserFunc(query.ParseString),
		log:      zap.NewNop(),
		tracer:   noop.NewTracerProvider().Tracer("querymeter"),
		system:   "solr",
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// UseFacets reports whether structured requests get a random facet.
func (o *QueryOperation) UseFacets() bool {
	return o.builder.cfg.UseFacets
}

// SetUseFacets toggles facet enrichment. Callers must not invoke it while
// Execute is running on another goroutine.
func (o *QueryOperation) SetUseFacets(v bool) {
	o.builder.cfg.UseFacets = v
}

// Execute implements Operation.
func (o *QueryOperation) Execute(ctx context.Context) (bool, error) {
	out, err := o.ExecuteOutcome(ctx)
	if err != nil {
		return false, err
	}
	return out.Succeeded(), nil
}

// Do adapts the operation to the runner: nil on success, the *QueryError on
// failure, the *ContractViolationError when the run must stop.
func (o *QueryOperation) Do(ctx context.Context) error {
	out, err := o.ExecuteOutcome(ctx)
	if err != nil {
		return err
	}
	if out.Err != nil {
		return out.Err
	}
	return nil
}

// ExecuteOutcome runs one invocation and returns its outcome. When the error
// is non-nil the outcome is not terminal and nothing was notified.
func (o *QueryOperation) ExecuteOutcome(ctx context.Context) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := Outcome{ID: ulid.Make().String(), State: StateBuilding}
	log := o.log.With(zap.String("invocation", out.ID))

	req, err := o.buildRequest()
	if err != nil {
		return o.fail(log, out, req, err), nil
	}
	out.Request = req

	log.Debug("executing query", zap.Stringer("query", req))
	ctx, span := tracing.StartQuerySpan(ctx, o.tracer, o.system, out.ID)

	out.State = StateSubmitted
	start := time.Now()
	resp, err := o.executor.Submit(ctx, req)
	if err != nil {
		tracing.EndSpan(span, err)
		return o.fail(log, out, req, err), nil
	}
	elapsed := time.Since(start)

	if resp == nil {
		cv := &ContractViolationError{QTime: -1, Query: req, Reason: "transport returned no response"}
		tracing.EndSpan(span, cv)
		return out, cv
	}

	log.Debug("query executed",
		zap.Int64("num_found", resp.NumFound),
		zap.Int64("qtime_ms", resp.QTime),
		zap.Duration("elapsed", elapsed),
	)
	if resp.QTime < 0 {
		cv := &ContractViolationError{QTime: resp.QTime, Query: req}
		tracing.EndSpan(span, cv)
		return out, cv
	}

	tracing.EndSpan(span, nil,
		attribute.Int64("querymeter.num_found", resp.NumFound),
		attribute.Int64("querymeter.qtime_ms", resp.QTime),
	)
	o.executor.NotifyQueryExecuted(resp, elapsed)

	out.Response = resp
	out.Elapsed = elapsed
	out.State = StateSucceeded
	return out, nil
}

func (o *QueryOperation) buildRequest() (*query.Request, error) {
	if o.mode == ModeExternal {
		raw := o.queries()
		req, err := o.parser.Parse(raw)
		if err != nil {
			fallback := query.NewRequest()
			fallback.Query = raw
			return fallback, err
		}
		return req, nil
	}
	return o.builder.Build(), nil
}

func (o *QueryOperation) fail(log *zap.Logger, out Outcome, req *query.Request, err error) Outcome {
	qerr := &QueryError{Err: err, Query: req}
	log.Error("error on query", zap.Stringer("query", req), zap.Error(err))
	o.executor.NotifyError(qerr)

	out.Request = req
	out.Err = qerr
	out.State = StateFailed
	return out
}
