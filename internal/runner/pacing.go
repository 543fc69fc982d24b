package runner

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pacer gates each dispatch.
type pacer interface {
	Wait(ctx context.Context) error
	SetRate(rps float64)
}

func newPacer(opt Options, sched *schedule) pacer {
	initial := float64(opt.RatePerSecond)
	if sched != nil {
		initial, _ = sched.rateAt(0)
	}

	if opt.ArrivalModel == ArrivalModelPoisson {
		sample := opt.PoissonSampler
		if sample == nil {
			sample = rand.New(rand.NewSource(opt.RandomSeed)).ExpFloat64
		}
		p := &poissonPacer{sample: sample}
		p.SetRate(initial)
		return p
	}

	u := &tokenPacer{limiter: opt.LimiterFactory(opt.RatePerSecond)}
	if sched != nil {
		u.SetRate(initial)
	}
	return u
}

// tokenPacer spaces dispatches evenly with a token bucket.
type tokenPacer struct {
	limiter *rate.Limiter
}

func (u *tokenPacer) Wait(ctx context.Context) error {
	return u.limiter.Wait(ctx)
}

func (u *tokenPacer) SetRate(rps float64) {
	if rps <= 0 {
		u.limiter.SetLimit(rate.Inf)
		u.limiter.SetBurst(0)
		return
	}
	u.limiter.SetLimit(rate.Limit(rps))
	u.limiter.SetBurst(max(1, int(math.Ceil(rps))))
}

// poissonPacer draws exponential gaps so arrivals form a Poisson process.
// A rate of 0 means no pacing.
type poissonPacer struct {
	mu     sync.Mutex
	rps    float64
	sample func() float64
}

func (p *poissonPacer) Wait(ctx context.Context) error {
	delay := p.nextGap()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *poissonPacer) SetRate(rps float64) {
	p.mu.Lock()
	p.rps = math.Max(rps, 0)
	p.mu.Unlock()
}

func (p *poissonPacer) nextGap() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rps <= 0 {
		return 0
	}
	gap := float64(time.Second) * p.sample() / p.rps
	if gap > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(gap)
}

// schedule is a piecewise-linear rate over time compiled from load patterns.
type schedule struct {
	segments []segment
	length   time.Duration
}

type segment struct {
	start, length time.Duration
	from, to      float64
}

func compileSchedule(patterns []LoadPattern) *schedule {
	s := &schedule{}
	add := func(d time.Duration, from, to int) {
		if d <= 0 {
			return
		}
		s.segments = append(s.segments, segment{start: s.length, length: d, from: float64(from), to: float64(to)})
		s.length += d
	}
	for _, p := range patterns {
		switch p.Type {
		case LoadPatternTypeRamp:
			add(p.Duration, p.FromRPS, p.ToRPS)
		case LoadPatternTypeStep:
			for _, step := range p.Steps {
				add(step.Duration, step.RPS, step.RPS)
			}
		case LoadPatternTypeSpike:
			add(p.Duration, p.RPS, p.RPS)
		}
	}
	if len(s.segments) == 0 {
		return nil
	}
	return s
}

// rateAt returns the target rate at elapsed, or false once the schedule ends.
func (s *schedule) rateAt(elapsed time.Duration) (float64, bool) {
	if s == nil {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range s.segments {
		if elapsed < seg.start || elapsed >= seg.start+seg.length {
			continue
		}
		if seg.from == seg.to {
			return seg.from, true
		}
		progress := float64(elapsed-seg.start) / float64(seg.length)
		return seg.from + (seg.to-seg.from)*progress, true
	}
	return 0, false
}
