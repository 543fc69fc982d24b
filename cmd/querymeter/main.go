package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/torosent/querymeter/internal/config"
	"github.com/torosent/querymeter/internal/logger"
	"github.com/torosent/querymeter/internal/metrics"
	"github.com/torosent/querymeter/internal/operation"
	"github.com/torosent/querymeter/internal/output"
	"github.com/torosent/querymeter/internal/runner"
	"github.com/torosent/querymeter/internal/solr"
	"github.com/torosent/querymeter/internal/threshold"
	"github.com/torosent/querymeter/internal/tracing"
)

const (
	progressInterval = time.Second
	baseRetryDelay   = 100 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.ContextWithLogger(ctx, log)

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	collector, srv, err := newCollector(*cfg, log)
	if err != nil {
		return err
	}
	if srv != nil {
		srv.Start()
		defer func() {
			sctx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			_ = srv.Shutdown(sctx)
		}()
	}

	client, err := solr.New(solr.Options{
		BaseURL:     cfg.SolrURL,
		Handler:     cfg.Handler,
		QueryType:   cfg.QueryType,
		Headers:     cfg.Headers,
		Username:    cfg.BasicAuth.Username,
		Password:    cfg.BasicAuth.Password,
		ExtraParams: cfg.StaticParams(),
		Timeout:     cfg.Timeout,
		Propagate:   tp.ShouldPropagate(),
	})
	if err != nil {
		return err
	}

	sources, err := buildSources(ctx, cfg.Query)
	if err != nil {
		return err
	}

	op := operation.NewQueryOperation(
		solrExecutor{Client: client, Collector: collector},
		sources,
		toOperationConfig(cfg.Query),
		operation.WithLogger(log),
		operation.WithTracer(tp.Tracer()),
	)

	var requester runner.Requester = op
	if cfg.LogErrors {
		requester = runner.WithLogging(requester, runner.ZapFailureLogger{Logger: log})
	}
	if cfg.Retries > 0 {
		requester = runner.WithRetry(requester, newRetryPolicy(cfg.Retries))
	}

	r := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		TotalRequests: cfg.Total,
		Duration:      cfg.Duration,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival.Model),
		LoadPatterns:  toRunnerLoadPatterns(cfg.LoadPatterns),
		Requester:     requester,
	})

	log.Info("starting run",
		zap.String("endpoint", client.Endpoint()),
		zap.String("mode", string(cfg.Query.Mode)),
		zap.Int("concurrency", cfg.Concurrency),
	)

	var progress *output.ProgressReporter
	if !cfg.JSONOutput {
		progress = output.NewProgressReporter(collector, progressInterval, stdout)
		progress.Start()
	}

	startedAt := time.Now()
	collector.Start()
	result := r.Run(ctx)
	if progress != nil {
		progress.Stop()
	}
	stats := collector.Stats(result.Duration)

	var results []threshold.Result
	if len(thresholds) > 0 {
		results = threshold.NewEvaluator(thresholds).Evaluate(stats)
	}

	report := output.Report{
		Target:     client.Endpoint(),
		Mode:       string(cfg.Query.Mode),
		StartedAt:  startedAt,
		Stats:      stats,
		Thresholds: results,
	}
	if result.Err != nil {
		report.Aborted = result.Err.Error()
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, stats)
		output.PrintThresholds(stdout, results)
	}
	if cfg.JSONReport != "" {
		if err := output.AppendJSONReport(cfg.JSONReport, report); err != nil {
			return err
		}
	}

	switch {
	case result.Err != nil:
		return fmt.Errorf("run aborted: %w", result.Err)
	case !threshold.AllPassed(results):
		return errors.New("one or more thresholds failed")
	case result.Errors > 0:
		return fmt.Errorf("%d queries failed", result.Errors)
	}
	return nil
}

// newCollector returns a collector and, when metrics_addr is set, a bound
// metrics server exporting it.
func newCollector(cfg config.Config, log *zap.Logger) (*metrics.Collector, *metrics.Server, error) {
	if cfg.MetricsAddr == "" {
		return metrics.NewCollector(), nil, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	instruments := metrics.NewInstruments(reg)
	instruments.SetWorkers(cfg.Concurrency)

	srv, err := metrics.NewServer(cfg.MetricsAddr, reg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics server: %w", err)
	}
	return metrics.NewCollector(metrics.WithInstruments(instruments)), srv, nil
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}

func toRunnerLoadPatterns(patterns []config.LoadPattern) []runner.LoadPattern {
	if len(patterns) == 0 {
		return nil
	}
	result := make([]runner.LoadPattern, len(patterns))
	for i, p := range patterns {
		steps := make([]runner.LoadStep, len(p.Steps))
		for j, s := range p.Steps {
			steps[j] = runner.LoadStep{RPS: s.RPS, Duration: s.Duration}
		}
		result[i] = runner.LoadPattern{
			Name:     p.Name,
			Type:     runner.LoadPatternType(p.Type),
			FromRPS:  p.FromRPS,
			ToRPS:    p.ToRPS,
			Duration: p.Duration,
			Steps:    steps,
			RPS:      p.RPS,
		}
	}
	return result
}
