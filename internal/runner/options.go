package runner

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Requester executes one unit of load. A non-nil error marks the unit failed.
type Requester interface {
	Do(ctx context.Context) error
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context) error

func (f RequesterFunc) Do(ctx context.Context) error { return f(ctx) }

// IsFatal reports whether err, or an error it wraps, has a Fatal method
// returning true. Fatal errors stop the run.
func IsFatal(err error) bool {
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"
	LoadPatternTypeStep  LoadPatternType = "step"
	LoadPatternTypeSpike LoadPatternType = "spike"
)

type LoadPattern struct {
	Name     string
	Type     LoadPatternType
	FromRPS  int
	ToRPS    int
	Duration time.Duration
	Steps    []LoadStep
	RPS      int
}

type LoadStep struct {
	RPS      int
	Duration time.Duration
}

type Options struct {
	Concurrency   int           // worker goroutines
	TotalRequests int           // 0 means unlimited
	Duration      time.Duration // 0 means no time cap
	RatePerSecond int           // 0 means unlimited
	ArrivalModel  ArrivalModel
	LoadPatterns  []LoadPattern
	RandomSeed    int64
	Requester     Requester

	// Test hooks.
	LimiterFactory func(rps int) *rate.Limiter
	PoissonSampler func() float64
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
