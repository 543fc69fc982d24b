// Package runner drives a Requester from a pool of workers until a count,
// a duration or a fatal error ends the run.
//
//	r := runner.New(runner.Options{
//		Concurrency:   10,
//		TotalRequests: 1000,
//		RatePerSecond: 100,
//		Requester:     op,
//	})
//	result := r.Run(ctx)
//	if result.Err != nil {
//		// a requester reported an error whose Fatal method returned true
//	}
//
// Pacing is either uniform (a token bucket from golang.org/x/time/rate) or
// Poisson (exponential inter-arrival gaps). A list of [LoadPattern] values
// replaces the fixed rate with a ramp, step or spike schedule.
//
// [WithRetry] and [WithLogging] wrap a Requester. Fatal errors are never
// retried.
package runner
