// Package selector provides the random data sources that feed query
// construction: query text, filter queries, facet fields and extra parameter
// lines.
package selector

import (
	"math/rand"
	"sync"
	"time"
)

// QueryExtractor returns one randomly chosen string. An empty string means
// the source had nothing to offer.
type QueryExtractor interface {
	RandomQuery() string
}

// FieldExtractor returns one randomly chosen facet field name.
type FieldExtractor interface {
	RandomFacetField() string
}

// Pool picks values uniformly at random from a replaceable set.
// It is safe for concurrent use.
type Pool struct {
	mu     sync.RWMutex
	values []string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewPool creates a pool over values. A zero seed uses the current time.
func NewPool(values []string, seed int64) *Pool {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Pool{
		values: append([]string(nil), values...),
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// Static returns a pool over a fixed list of values.
func Static(values ...string) *Pool {
	return NewPool(values, 1)
}

// RandomQuery implements QueryExtractor.
func (p *Pool) RandomQuery() string {
	return p.pick()
}

// RandomFacetField implements FieldExtractor.
func (p *Pool) RandomFacetField() string {
	return p.pick()
}

// Replace swaps the pool contents.
func (p *Pool) Replace(values []string) {
	p.mu.Lock()
	p.values = append([]string(nil), values...)
	p.mu.Unlock()
}

// Len returns the number of values in the pool.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

func (p *Pool) pick() string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch len(p.values) {
	case 0:
		return ""
	case 1:
		return p.values[0]
	}

	p.rndMu.Lock()
	idx := p.rnd.Intn(len(p.values))
	p.rndMu.Unlock()
	return p.values[idx]
}
