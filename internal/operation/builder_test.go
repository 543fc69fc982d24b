package operation

import (
	"reflect"
	"testing"

	"github.com/torosent/querymeter/internal/query"
	"github.com/torosent/querymeter/internal/selector"
)

func allSources() Sources {
	return Sources{
		Queries:       fixed("title:solr"),
		FilterQueries: fixed("type:book"),
		FacetFields:   fixed("category"),
		ExtraParams:   fixed("rows=5&sort=id asc"),
	}
}

func TestBuildAppliesBaseFields(t *testing.T) {
	tr := &fakeExecutor{queryType: "standard"}
	req := NewBuilder(Config{}, tr, Sources{Queries: fixed("")}).Build()

	if req.Query != "" {
		t.Errorf("Query = %q, want empty", req.Query)
	}
	if req.QueryType != "standard" {
		t.Errorf("QueryType = %q", req.QueryType)
	}
	if !req.IncludeScore {
		t.Error("score should always be included")
	}
	if req.Facet.Enabled || len(req.FilterQueries) != 0 || len(req.Params) != 0 {
		t.Errorf("unexpected enrichment: %+v", req)
	}
}

func TestBuildStaticParamsKeepOrderAndDuplicates(t *testing.T) {
	tr := &fakeExecutor{extra: []query.Param{{Key: "defType", Value: "edismax"}, {Key: "bq", Value: "a"}, {Key: "bq", Value: "b"}}}
	req := NewBuilder(Config{}, tr, Sources{Queries: fixed("x")}).Build()

	if !reflect.DeepEqual(req.Params, tr.extra) {
		t.Errorf("Params = %v, want %v", req.Params, tr.extra)
	}
}

func TestBuildFacets(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		wantMethod bool
	}{
		{name: "without method"},
		{name: "with method", method: "enum", wantMethod: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{UseFacets: true, FacetMinCount: 2, FacetLimit: 10, FacetMethod: tt.method}
			req := NewBuilder(cfg, &fakeExecutor{}, allSources()).Build()

			if !req.Facet.Enabled || !reflect.DeepEqual(req.Facet.Fields, []string{"category"}) {
				t.Fatalf("Facet = %+v", req.Facet)
			}
			if req.Facet.MinCount != 2 || req.Facet.Limit != 10 {
				t.Errorf("Facet counters = %d/%d", req.Facet.MinCount, req.Facet.Limit)
			}
			got, ok := req.Get("facet.method")
			if ok != tt.wantMethod || got != tt.method {
				t.Errorf("facet.method = %q, %v", got, ok)
			}
		})
	}
}

func TestBuildFacetsDisabledNeverFacets(t *testing.T) {
	b := NewBuilder(Config{UseFacets: false, UseFilterQueries: true, AddRandomExtraParams: true}, &fakeExecutor{}, allSources())
	for i := 0; i < 20; i++ {
		req := b.Build()
		if req.Facet.Enabled || len(req.Facet.Fields) != 0 {
			t.Fatalf("facets disabled but request has %+v", req.Facet)
		}
	}
}

func TestBuildFiltersDisabledNeverFilters(t *testing.T) {
	b := NewBuilder(Config{UseFacets: true, UseFilterQueries: false}, &fakeExecutor{}, allSources())
	for i := 0; i < 20; i++ {
		if fq := b.Build().FilterQueries; len(fq) != 0 {
			t.Fatalf("filters disabled but request has %v", fq)
		}
	}
}

func TestBuildFilterQuery(t *testing.T) {
	tests := []struct {
		name string
		fq   string
		want []string
	}{
		{name: "added", fq: "type:book", want: []string{"type:book"}},
		{name: "blank skipped", fq: "   "},
		{name: "empty skipped", fq: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Sources{Queries: fixed("x"), FilterQueries: fixed(tt.fq)}
			req := NewBuilder(Config{UseFilterQueries: true}, &fakeExecutor{}, src).Build()
			if !reflect.DeepEqual(req.FilterQueries, tt.want) {
				t.Errorf("FilterQueries = %v, want %v", req.FilterQueries, tt.want)
			}
		})
	}
}

func TestBuildRandomExtraParams(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []query.Param
	}{
		{name: "two pairs", line: "a=1&b=2", want: []query.Param{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}},
		{name: "trimmed", line: " rows = 5 & start=10", want: []query.Param{{Key: "rows", Value: "5"}, {Key: "start", Value: "10"}}},
		{name: "no equals", line: "garbage&more"},
		{name: "empty key", line: "=1&=2"},
		{name: "whitespace", line: "   "},
		{name: "empty", line: ""},
		{name: "mixed", line: "=x&ok=1&bad", want: []query.Param{{Key: "ok", Value: "1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Sources{Queries: fixed("x"), ExtraParams: fixed(tt.line)}
			req := NewBuilder(Config{AddRandomExtraParams: true}, &fakeExecutor{}, src).Build()
			if !reflect.DeepEqual(req.Params, tt.want) {
				t.Errorf("Params = %v, want %v", req.Params, tt.want)
			}
		})
	}
}

func TestBuildNilSourcesAreEmpty(t *testing.T) {
	cfg := Config{UseFacets: true, UseFilterQueries: true, AddRandomExtraParams: true}
	req := NewBuilder(cfg, &fakeExecutor{}, Sources{}).Build()

	if req.Query != "" || len(req.FilterQueries) != 0 || len(req.Params) != 0 {
		t.Errorf("unexpected request: %+v", req)
	}
	if !reflect.DeepEqual(req.Facet.Fields, []string{""}) {
		t.Errorf("Facet.Fields = %v", req.Facet.Fields)
	}
}

func TestBuildIsIdempotentForFixedSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FacetMethod = "fc"
	tr := &fakeExecutor{queryType: "dismax", extra: []query.Param{{Key: "wt", Value: "json"}}}
	b := NewBuilder(cfg, tr, allSources())

	first, second := b.Build(), b.Build()
	if first == second {
		t.Fatal("each build should return a new request")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("builds differ:\n%+v\n%+v", first, second)
	}
}

func TestBuildWithPools(t *testing.T) {
	src := Sources{
		Queries:     selector.Static("a", "b", "c"),
		FacetFields: selector.Static("f1", "f2"),
	}
	b := NewBuilder(Config{UseFacets: true}, &fakeExecutor{}, src)
	for i := 0; i < 10; i++ {
		req := b.Build()
		switch req.Query {
		case "a", "b", "c":
		default:
			t.Fatalf("unexpected query %q", req.Query)
		}
		if f := req.Facet.Fields[0]; f != "f1" && f != "f2" {
			t.Fatalf("unexpected facet field %q", f)
		}
	}
}
