package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/torosent/querymeter/internal/query"
)

type QueryMode string

const (
	QueryModeInternal QueryMode = "internal"
	QueryModeExternal QueryMode = "external"
)

type Config struct {
	SolrURL      string            `mapstructure:"solr_url"`
	Handler      string            `mapstructure:"handler"`
	QueryType    string            `mapstructure:"query_type"`
	Headers      map[string]string `mapstructure:"headers"`
	BasicAuth    BasicAuthConfig   `mapstructure:"basic_auth"`
	ExtraParams  []string          `mapstructure:"extra_params"`
	Query        QueryConfig       `mapstructure:"query"`
	Concurrency  int               `mapstructure:"concurrency"`
	Rate         int               `mapstructure:"rate"`
	Duration     time.Duration     `mapstructure:"duration"`
	Total        int               `mapstructure:"total"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Retries      int               `mapstructure:"retries"`
	Arrival      ArrivalConfig     `mapstructure:"arrival"`
	LoadPatterns []LoadPattern     `mapstructure:"load_patterns"`
	JSONOutput   bool              `mapstructure:"json_output"`
	JSONReport   string            `mapstructure:"json_report"`
	LogErrors    bool              `mapstructure:"log_errors"`
	LogLevel     string            `mapstructure:"log_level"`
	LogFormat    string            `mapstructure:"log_format"`
	MetricsAddr  string            `mapstructure:"metrics_addr"`
	Thresholds   []string          `mapstructure:"thresholds"`
	Tracing      TracingConfig     `mapstructure:"tracing"`
	ConfigFile   string            `mapstructure:"-"`
}

// QueryConfig controls how each query is built and where its random inputs come from.
type QueryConfig struct {
	Mode                 QueryMode `mapstructure:"mode"`
	UseFacets            bool      `mapstructure:"use_facets"`
	FacetMinCount        int       `mapstructure:"facet_min_count"`
	FacetLimit           int       `mapstructure:"facet_limit"`
	FacetMethod          string    `mapstructure:"facet_method"`
	UseFilterQueries     bool      `mapstructure:"use_filter_queries"`
	AddRandomExtraParams bool      `mapstructure:"add_random_extra_params"`
	QueriesFile          string    `mapstructure:"queries_file"`
	FilterQueriesFile    string    `mapstructure:"filter_queries_file"`
	FacetFieldsFile      string    `mapstructure:"facet_fields_file"`
	FacetFields          []string  `mapstructure:"facet_fields"`
	ExtraParamsFile      string    `mapstructure:"extra_params_file"`
	Column               string    `mapstructure:"column"`
	WatchFiles           bool      `mapstructure:"watch_files"`
	Seed                 int64     `mapstructure:"seed"`
}

type BasicAuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"
	LoadPatternTypeStep  LoadPatternType = "step"
	LoadPatternTypeSpike LoadPatternType = "spike"
)

type LoadPattern struct {
	Name     string          `mapstructure:"name"`
	Type     LoadPatternType `mapstructure:"type"`
	FromRPS  int             `mapstructure:"from_rps"`
	ToRPS    int             `mapstructure:"to_rps"`
	Duration time.Duration   `mapstructure:"duration"`
	Steps    []LoadStep      `mapstructure:"steps"`
	RPS      int             `mapstructure:"rps"`
}

type LoadStep struct {
	RPS      int           `mapstructure:"rps"`
	Duration time.Duration `mapstructure:"duration"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// StaticParams returns the configured extra parameters in order. Each entry
// is a single key=value pair; the value may itself contain '&' or '='.
func (c Config) StaticParams() []query.Param {
	var params []query.Param
	for _, entry := range c.ExtraParams {
		if p, ok := staticParam(entry); ok {
			params = append(params, p)
		}
	}
	return params
}

func staticParam(entry string) (query.Param, bool) {
	key, value, ok := strings.Cut(entry, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return query.Param{}, false
	}
	return query.Param{Key: key, Value: strings.TrimSpace(value)}, true
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.SolrURL) == "" {
		issues = append(issues, "solr_url is required (use --help for usage information)")
	} else if u, err := url.Parse(c.SolrURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("solr_url %q is not an absolute URL", c.SolrURL))
	}

	if c.Rate > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High rate limit configured (%d QPS). Ensure you have authorization to load the target cluster.\n", c.Rate)
	}
	if c.Concurrency > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d workers). Ensure you have authorization to load the target cluster.\n", c.Concurrency)
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.JSONOutput && c.LogFormat == "console" && c.LogLevel == "debug" {
		issues = append(issues, "json-output with debug console logging would interleave on stdout; use --log-format json")
	}

	for idx, entry := range c.ExtraParams {
		if _, ok := staticParam(entry); !ok {
			issues = append(issues, fmt.Sprintf("extra_params[%d]: %q has no key=value pair", idx, entry))
		}
	}

	issues = append(issues, validateQueryConfig(c.Query)...)
	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateLoadPatterns(c.LoadPatterns)...)
	issues = append(issues, validateLogging(c.LogLevel, c.LogFormat)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateQueryConfig(q QueryConfig) []string {
	var issues []string

	switch q.Mode {
	case "", QueryModeInternal, QueryModeExternal:
	default:
		issues = append(issues, fmt.Sprintf("query.mode must be 'internal' or 'external', got %q", q.Mode))
	}

	if strings.TrimSpace(q.QueriesFile) == "" {
		issues = append(issues, "query.queries_file is required")
	}
	if q.FacetMinCount < 0 {
		issues = append(issues, "query.facet_min_count must be >= 0")
	}
	if q.FacetLimit < 0 {
		issues = append(issues, "query.facet_limit must be >= 0")
	}
	internal := q.Mode == "" || q.Mode == QueryModeInternal
	if internal && q.UseFacets && strings.TrimSpace(q.FacetFieldsFile) == "" && len(q.FacetFields) == 0 {
		issues = append(issues, "query.use_facets requires query.facet_fields_file or query.facet_fields")
	}
	return issues
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	switch arr.Model {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", arr.Model)}
	}
}

func validateLoadPatterns(patterns []LoadPattern) []string {
	var issues []string
	for idx, pattern := range patterns {
		switch pattern.Type {
		case "":
			issues = append(issues, fmt.Sprintf("load_patterns[%d]: type is required", idx))
		case LoadPatternTypeRamp:
			if pattern.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("load_patterns[%d]: duration must be > 0 for ramp", idx))
			}
			if pattern.FromRPS < 0 || pattern.ToRPS < 0 {
				issues = append(issues, fmt.Sprintf("load_patterns[%d]: from_rps and to_rps must be >= 0", idx))
			}
		case LoadPatternTypeStep:
			if len(pattern.Steps) == 0 {
				issues = append(issues, fmt.Sprintf("load_patterns[%d]: steps are required for step pattern", idx))
			}
			for stepIdx, step := range pattern.Steps {
				if step.RPS < 0 {
					issues = append(issues, fmt.Sprintf("load_patterns[%d].steps[%d]: rps must be >= 0", idx, stepIdx))
				}
				if step.Duration <= 0 {
					issues = append(issues, fmt.Sprintf("load_patterns[%d].steps[%d]: duration must be > 0", idx, stepIdx))
				}
			}
		case LoadPatternTypeSpike:
			if pattern.RPS <= 0 {
				issues = append(issues, fmt.Sprintf("load_patterns[%d]: rps must be > 0 for spike", idx))
			}
			if pattern.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("load_patterns[%d]: duration must be > 0 for spike", idx))
			}
		default:
			issues = append(issues, fmt.Sprintf("load_patterns[%d]: unsupported type %q", idx, pattern.Type))
		}
	}
	return issues
}

func validateLogging(level, format string) []string {
	var issues []string
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q is not supported", level))
	}
	switch strings.ToLower(format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format must be 'console' or 'json', got %q", format))
	}
	return issues
}
