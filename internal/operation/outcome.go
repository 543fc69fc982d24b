package operation

import (
	"time"

	"github.com/torosent/querymeter/internal/query"
)

// State is the lifecycle position of one invocation.
type State int

const (
	StateIdle State = iota
	StateBuilding
	StateSubmitted
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateSubmitted:
		return "submitted"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Outcome describes one invocation. Response and Elapsed are set on success,
// Err on failure.
type Outcome struct {
	ID       string
	State    State
	Request  *query.Request
	Response *query.Response
	Elapsed  time.Duration
	Err      *QueryError
}

// Succeeded reports whether the invocation ended in StateSucceeded.
func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}
