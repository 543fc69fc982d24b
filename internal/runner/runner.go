package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Result captures execution summary.
type Result struct {
	Total    int64
	Errors   int64
	Duration time.Duration
	// Err is the first fatal error reported by the Requester, if any.
	Err error
}

// Runner coordinates concurrent execution with rate limiting.
type Runner struct {
	opt   Options
	sched *schedule
	pace  pacer
}

func New(opt Options) *Runner {
	opt.normalize()
	sched := compileSchedule(opt.LoadPatterns)
	return &Runner{opt: opt, sched: sched, pace: newPacer(opt, sched)}
}

func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	var (
		issued   int64
		executed int64
		errs     int64
		fatalErr error
		fatal    sync.Once
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, r.opt.Duration)
		defer stop()
	}
	if r.sched != nil {
		go r.followSchedule(ctx, cancel)
	}

	permits := make(chan struct{}, r.opt.Concurrency)

	// A single dispatcher serializes pacing so workers cannot overshoot the rate together.
	go func() {
		defer close(permits)
		for ctx.Err() == nil {
			if r.opt.TotalRequests > 0 && atomic.LoadInt64(&issued) >= int64(r.opt.TotalRequests) {
				return
			}
			if err := r.pace.Wait(ctx); err != nil {
				return
			}
			atomic.AddInt64(&issued, 1)
			select {
			case permits <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for range permits {
				if ctx.Err() != nil {
					return
				}
				atomic.AddInt64(&executed, 1)
				if r.opt.Requester == nil {
					continue
				}
				err := r.opt.Requester.Do(ctx)
				if err == nil {
					continue
				}
				atomic.AddInt64(&errs, 1)
				if IsFatal(err) {
					fatal.Do(func() { fatalErr = err })
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()

	return Result{
		Total:    atomic.LoadInt64(&executed),
		Errors:   atomic.LoadInt64(&errs),
		Duration: time.Since(start),
		Err:      fatalErr,
	}
}

// followSchedule retunes the pacer every 100ms and ends the run when the
// schedule is exhausted.
func (r *Runner) followSchedule(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	start := time.Now()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rps, ok := r.sched.rateAt(time.Since(start))
			if !ok {
				return
			}
			r.pace.SetRate(rps)
		}
	}
}
