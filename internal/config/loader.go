package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any file or flag is applied.
func Defaults() *Config {
	return &Config{
		Handler:     "/select",
		Headers:     map[string]string{},
		Concurrency: 1,
		Timeout:     30 * time.Second,
		Arrival:     ArrivalConfig{Model: ArrivalModelUniform},
		LogLevel:    "info",
		LogFormat:   "console",
		Query: QueryConfig{
			Mode:                 QueryModeInternal,
			UseFacets:            true,
			FacetMinCount:        1,
			FacetLimit:           8,
			UseFilterQueries:     true,
			AddRandomExtraParams: true,
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
}

// Load parses command-line arguments and an optional config file into a Config.
// Settings from the file are applied first; explicitly set flags win.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, v.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.SolrURL = strings.TrimRight(strings.TrimSpace(cfg.SolrURL), "/")
	if cfg.Handler != "" && !strings.HasPrefix(cfg.Handler, "/") {
		cfg.Handler = "/" + cfg.Handler
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if err := setString(settings, &cfg.SolrURL, "solr_url", "solrurl", "solr-url", "url"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.Handler, "handler"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.QueryType, "query_type", "querytype", "query-type", "qt"); err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "basic_auth", "basicauth", "basic-auth"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("basic_auth: %w", err)
		}
		if err := setString(entry, &cfg.BasicAuth.Username, "username", "user"); err != nil {
			return fmt.Errorf("basic_auth: %w", err)
		}
		if err := setString(entry, &cfg.BasicAuth.Password, "password"); err != nil {
			return fmt.Errorf("basic_auth: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "extra_params", "extraparams", "extra-params", "params"); ok {
		params, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("extra_params: %w", err)
		}
		cfg.ExtraParams = params
	}

	if raw, ok := lookupSetting(settings, "query"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if err := applyQuerySettings(&cfg.Query, entry); err != nil {
			return fmt.Errorf("query.%w", err)
		}
	}

	for _, b := range []struct {
		dst  *int
		keys []string
	}{
		{&cfg.Concurrency, []string{"concurrency"}},
		{&cfg.Rate, []string{"rate"}},
		{&cfg.Total, []string{"total"}},
		{&cfg.Retries, []string{"retries"}},
	} {
		if err := setInt(settings, b.dst, b.keys...); err != nil {
			return err
		}
	}
	if err := setDuration(settings, &cfg.Duration, "duration"); err != nil {
		return err
	}
	if err := setDuration(settings, &cfg.Timeout, "timeout"); err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	} else if raw, ok := lookupSetting(settings, "arrival_model", "arrivalmodel", "arrival-model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival_model: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "load_patterns", "loadpatterns", "load-patterns"); ok {
		patterns, err := parseLoadPatterns(raw)
		if err != nil {
			return fmt.Errorf("load_patterns: %w", err)
		}
		cfg.LoadPatterns = patterns
	}

	if err := setBool(settings, &cfg.JSONOutput, "json_output", "jsonoutput", "json-output"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.JSONReport, "json_report", "jsonreport", "json-report"); err != nil {
		return err
	}
	if err := setBool(settings, &cfg.LogErrors, "log_errors", "logerrors", "log-errors"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.LogLevel, "log_level", "loglevel", "log-level"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.LogFormat, "log_format", "logformat", "log-format"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.MetricsAddr, "metrics_addr", "metricsaddr", "metrics-addr"); err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		if err := applyTracingSettings(&cfg.Tracing, entry); err != nil {
			return fmt.Errorf("tracing.%w", err)
		}
	}

	return nil
}

func applyQuerySettings(q *QueryConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		q.Mode = QueryMode(strings.ToLower(strings.TrimSpace(val)))
	}
	for _, b := range []struct {
		dst  *bool
		keys []string
	}{
		{&q.UseFacets, []string{"use_facets", "usefacets", "use-facets"}},
		{&q.UseFilterQueries, []string{"use_filter_queries", "usefilterqueries", "use-filter-queries"}},
		{&q.AddRandomExtraParams, []string{"add_random_extra_params", "addrandomextraparams", "add-random-extra-params"}},
		{&q.WatchFiles, []string{"watch_files", "watchfiles", "watch-files"}},
	} {
		if err := setBool(settings, b.dst, b.keys...); err != nil {
			return err
		}
	}
	if err := setInt(settings, &q.FacetMinCount, "facet_min_count", "facetmincount", "facet-min-count"); err != nil {
		return err
	}
	if err := setInt(settings, &q.FacetLimit, "facet_limit", "facetlimit", "facet-limit"); err != nil {
		return err
	}
	for _, b := range []struct {
		dst  *string
		keys []string
	}{
		{&q.FacetMethod, []string{"facet_method", "facetmethod", "facet-method"}},
		{&q.QueriesFile, []string{"queries_file", "queriesfile", "queries-file"}},
		{&q.FilterQueriesFile, []string{"filter_queries_file", "filterqueriesfile", "filter-queries-file"}},
		{&q.FacetFieldsFile, []string{"facet_fields_file", "facetfieldsfile", "facet-fields-file"}},
		{&q.ExtraParamsFile, []string{"extra_params_file", "extraparamsfile", "extra-params-file"}},
		{&q.Column, []string{"column"}},
	} {
		if err := setString(settings, b.dst, b.keys...); err != nil {
			return err
		}
	}
	if raw, ok := lookupSetting(settings, "facet_fields", "facetfields", "facet-fields"); ok {
		fields, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("facet_fields: %w", err)
		}
		q.FacetFields = fields
	}
	if raw, ok := lookupSetting(settings, "seed"); ok {
		seed, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		q.Seed = seed
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, settings map[string]interface{}) error {
	if err := setString(settings, &t.Endpoint, "endpoint"); err != nil {
		return err
	}
	if err := setString(settings, &t.Protocol, "protocol"); err != nil {
		return err
	}
	if err := setString(settings, &t.ServiceName, "service_name", "servicename", "service-name"); err != nil {
		return err
	}
	if err := setBool(settings, &t.Insecure, "insecure"); err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}

func setString(settings map[string]interface{}, dst *string, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = strings.TrimSpace(val)
	return nil
}

func setInt(settings map[string]interface{}, dst *int, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asInt(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = val
	return nil
}

func setBool(settings map[string]interface{}, dst *bool, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = val
	return nil
}

func setDuration(settings map[string]interface{}, dst *time.Duration, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = val
	return nil
}

func parseLoadPatterns(value interface{}) ([]LoadPattern, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	patterns := make([]LoadPattern, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		pattern, err := buildLoadPattern(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func buildLoadPattern(settings map[string]interface{}) (LoadPattern, error) {
	var pattern LoadPattern
	var kind string
	if err := setString(settings, &pattern.Name, "name"); err != nil {
		return LoadPattern{}, err
	}
	if err := setString(settings, &kind, "type"); err != nil {
		return LoadPattern{}, err
	}
	pattern.Type = LoadPatternType(strings.ToLower(kind))
	if err := setInt(settings, &pattern.FromRPS, "from_rps", "fromrps", "from-rps"); err != nil {
		return LoadPattern{}, err
	}
	if err := setInt(settings, &pattern.ToRPS, "to_rps", "torps", "to-rps"); err != nil {
		return LoadPattern{}, err
	}
	if err := setInt(settings, &pattern.RPS, "rps"); err != nil {
		return LoadPattern{}, err
	}
	if err := setDuration(settings, &pattern.Duration, "duration"); err != nil {
		return LoadPattern{}, err
	}
	if raw, ok := lookupSetting(settings, "steps"); ok {
		steps, err := parseLoadSteps(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("steps: %w", err)
		}
		pattern.Steps = steps
	}
	return pattern, nil
}

func parseLoadSteps(value interface{}) ([]LoadStep, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	steps := make([]LoadStep, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var step LoadStep
		if err := setInt(entry, &step.RPS, "rps"); err != nil {
			return nil, fmt.Errorf("index %d %w", idx, err)
		}
		if err := setDuration(entry, &step.Duration, "duration"); err != nil {
			return nil, fmt.Errorf("index %d %w", idx, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// parseArrival accepts either a bare model name or a {model: ...} block.
func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	if s, ok := value.(string); ok {
		return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(s)))}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return ArrivalConfig{}, err
	}
	raw, ok := lookupSetting(entry, "model")
	if !ok {
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
	model, err := asString(raw)
	if err != nil {
		return ArrivalConfig{}, fmt.Errorf("model: %w", err)
	}
	return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(model)))}, nil
}
