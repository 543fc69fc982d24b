// Package query holds the search request and response model shared by the
// query operation, the Solr transport and the external query parser.
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Param is a single request parameter. Requests keep params in insertion
// order and allow duplicate keys.
type Param struct {
	Key   string
	Value string
}

// Facet describes the faceting part of a request.
type Facet struct {
	Enabled  bool
	Fields   []string
	MinCount int
	Limit    int
}

// Request is a search request built for a single invocation.
// It is not safe for concurrent mutation and must not be changed after Submit.
type Request struct {
	Query         string
	QueryType     string
	IncludeScore  bool
	Params        []Param
	FilterQueries []string
	Facet         Facet
}

// NewRequest returns an empty request with facet counters set to the values
// Solr would use when none are given.
func NewRequest() *Request {
	return &Request{Facet: Facet{MinCount: -1, Limit: -1}}
}

// Add appends a raw parameter. Existing params with the same key are kept.
func (r *Request) Add(key, value string) {
	r.Params = append(r.Params, Param{Key: key, Value: value})
}

// AddFilterQuery appends a filter clause.
func (r *Request) AddFilterQuery(fq string) {
	r.FilterQueries = append(r.FilterQueries, fq)
}

// AddFacetField appends a facet field and enables faceting.
func (r *Request) AddFacetField(field string) {
	r.Facet.Enabled = true
	r.Facet.Fields = append(r.Facet.Fields, field)
}

// Get returns the first value added for key.
func (r *Request) Get(key string) (string, bool) {
	for _, p := range r.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Values renders the request as ordered Solr parameters.
func (r *Request) Values() []Param {
	out := make([]Param, 0, len(r.Params)+len(r.FilterQueries)+len(r.Facet.Fields)+6)
	out = append(out, Param{Key: "q", Value: r.Query})
	if r.QueryType != "" {
		out = append(out, Param{Key: "qt", Value: r.QueryType})
	}
	if r.IncludeScore {
		out = append(out, Param{Key: "fl", Value: "*,score"})
	}
	out = append(out, r.Params...)
	for _, fq := range r.FilterQueries {
		out = append(out, Param{Key: "fq", Value: fq})
	}
	if r.Facet.Enabled {
		out = append(out, Param{Key: "facet", Value: "true"})
		for _, field := range r.Facet.Fields {
			out = append(out, Param{Key: "facet.field", Value: field})
		}
		if r.Facet.MinCount >= 0 {
			out = append(out, Param{Key: "facet.mincount", Value: strconv.Itoa(r.Facet.MinCount)})
		}
		if r.Facet.Limit >= 0 {
			out = append(out, Param{Key: "facet.limit", Value: strconv.Itoa(r.Facet.Limit)})
		}
	}
	return out
}

// Encode returns the URL-encoded parameter string, preserving order.
func (r *Request) Encode() string {
	return EncodeParams(r.Values())
}

// String implements fmt.Stringer for log output.
func (r *Request) String() string {
	if r == nil {
		return "<nil>"
	}
	return r.Encode()
}

// EncodeParams URL-encodes params in order.
func EncodeParams(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
