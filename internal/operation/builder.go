package operation

import (
	"strings"

	"github.com/torosent/querymeter/internal/query"
	"github.com/torosent/querymeter/internal/selector"
)

// Builder assembles structured requests from the random sources.
type Builder struct {
	cfg       Config
	transport Transport
	sources   Sources
}

// NewBuilder creates a builder. The transport supplies the query type and the
// static extra parameters.
func NewBuilder(cfg Config, transport Transport, sources Sources) *Builder {
	return &Builder{cfg: cfg, transport: transport, sources: sources}
}

// Build returns a new request for a random base query.
func (b *Builder) Build() *query.Request {
	req := query.NewRequest()
	req.Query = randomQuery(b.sources.Queries)
	req.QueryType = b.transport.QueryType()
	req.IncludeScore = true

	b.addExtraParameters(req)
	if b.cfg.UseFacets {
		b.addFacetParameters(req)
	}
	if b.cfg.UseFilterQueries {
		b.addFilterQuery(req)
	}
	if b.cfg.AddRandomExtraParams {
		b.addRandomExtraParameters(req)
	}
	return req
}

func (b *Builder) addExtraParameters(req *query.Request) {
	for _, p := range b.transport.ExtraParameters() {
		req.Add(p.Key, p.Value)
	}
}

func (b *Builder) addFacetParameters(req *query.Request) {
	var field string
	if b.sources.FacetFields != nil {
		field = b.sources.FacetFields.RandomFacetField()
	}
	req.AddFacetField(field)
	req.Facet.MinCount = b.cfg.FacetMinCount
	req.Facet.Limit = b.cfg.FacetLimit
	if b.cfg.FacetMethod != "" {
		req.Add("facet.method", b.cfg.FacetMethod)
	}
}

// addFilterQuery treats an empty selector result as "no filter".
func (b *Builder) addFilterQuery(req *query.Request) {
	fq := randomQuery(b.sources.FilterQueries)
	if strings.TrimSpace(fq) != "" {
		req.AddFilterQuery(fq)
	}
}

func (b *Builder) addRandomExtraParameters(req *query.Request) {
	for _, p := range query.ParseParamLine(randomQuery(b.sources.ExtraParams)) {
		req.Add(p.Key, p.Value)
	}
}

func randomQuery(e selector.QueryExtractor) string {
	if e == nil {
		return ""
	}
	return e.RandomQuery()
}
