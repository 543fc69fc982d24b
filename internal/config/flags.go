package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "querymeter",
		Short:         "Drive randomized query load against a Solr endpoint",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Target
	flags.String("solr-url", "", "Base URL of the Solr core or collection (e.g. http://localhost:8983/solr/books)")
	flags.String("handler", "/select", "Request handler path appended to the base URL")
	flags.String("query-type", "", "Value sent as the qt parameter on every query")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("basic-auth", "", "Basic auth credentials in user:password form")
	flags.StringArray("param", nil, "Static parameter added to every query, key=value (repeatable)")

	// Query generation
	flags.String("query-mode", string(QueryModeInternal), "How queries are produced: 'internal' (built) or 'external' (parsed strings)")
	flags.String("queries-file", "", "File of query strings (txt, csv, json or yaml)")
	flags.String("filter-queries-file", "", "File of filter queries")
	flags.String("facet-fields-file", "", "File of facet field names")
	flags.StringSlice("facet-field", nil, "Facet field name (repeatable)")
	flags.String("extra-params-file", "", "File of k=v&k=v parameter lines")
	flags.String("column", "", "Column or field to read from csv/json selector files")
	flags.Bool("use-facets", true, "Add a random facet field to each built query")
	flags.Int("facet-min-count", 1, "facet.mincount for built queries")
	flags.Int("facet-limit", 8, "facet.limit for built queries")
	flags.String("facet-method", "", "facet.method for built queries")
	flags.Bool("use-filter-queries", true, "Add a random filter query to each built query")
	flags.Bool("add-random-extra-params", true, "Add a random parameter line to each built query")
	flags.Bool("watch-files", false, "Reload selector files when they change")
	flags.Int64("seed", 0, "Random seed for selectors (0 means time based)")

	// Load control
	flags.IntP("concurrency", "c", 1, "Number of concurrent workers")
	flags.IntP("rate", "r", 0, "Queries per second limit (0 means unlimited)")
	flags.DurationP("duration", "d", 0, "How long to run (e.g. 30s, 1m)")
	flags.IntP("total", "t", 0, "Total number of queries to send (0 means unlimited)")
	flags.Duration("timeout", 30*time.Second, "Per-query timeout")
	flags.Int("retries", 0, "Number of retries per failed query")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model used when pacing queries (uniform or poisson)")

	// Output
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.String("json-report", "", "Append the JSON report to this file")
	flags.Bool("log-errors", false, "Log each failed query")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g. 'query_duration:p95 < 500')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of queries traced")
	flags.Bool("tracing-insecure", false, "Disable TLS to the collector")
	flags.Bool("tracing-propagate", true, "Send W3C trace headers with each query")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides copies explicitly set flags onto cfg.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	for _, b := range []struct {
		name string
		dst  *string
	}{
		{"solr-url", &cfg.SolrURL},
		{"handler", &cfg.Handler},
		{"query-type", &cfg.QueryType},
		{"queries-file", &cfg.Query.QueriesFile},
		{"filter-queries-file", &cfg.Query.FilterQueriesFile},
		{"facet-fields-file", &cfg.Query.FacetFieldsFile},
		{"extra-params-file", &cfg.Query.ExtraParamsFile},
		{"column", &cfg.Query.Column},
		{"facet-method", &cfg.Query.FacetMethod},
		{"json-report", &cfg.JSONReport},
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
		{"metrics-addr", &cfg.MetricsAddr},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	} {
		if !fs.Changed(b.name) {
			continue
		}
		val, err := fs.GetString(b.name)
		if err != nil {
			return err
		}
		*b.dst = strings.TrimSpace(val)
	}

	for _, b := range []struct {
		name string
		dst  *int
	}{
		{"concurrency", &cfg.Concurrency},
		{"rate", &cfg.Rate},
		{"total", &cfg.Total},
		{"retries", &cfg.Retries},
		{"facet-min-count", &cfg.Query.FacetMinCount},
		{"facet-limit", &cfg.Query.FacetLimit},
	} {
		if !fs.Changed(b.name) {
			continue
		}
		val, err := fs.GetInt(b.name)
		if err != nil {
			return err
		}
		*b.dst = val
	}

	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"use-facets", &cfg.Query.UseFacets},
		{"use-filter-queries", &cfg.Query.UseFilterQueries},
		{"add-random-extra-params", &cfg.Query.AddRandomExtraParams},
		{"watch-files", &cfg.Query.WatchFiles},
		{"json-output", &cfg.JSONOutput},
		{"log-errors", &cfg.LogErrors},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	} {
		if !fs.Changed(b.name) {
			continue
		}
		val, err := fs.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = val
	}

	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Query.Seed = val
	}
	if fs.Changed("query-mode") {
		val, err := fs.GetString("query-mode")
		if err != nil {
			return err
		}
		cfg.Query.Mode = QueryMode(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	if fs.Changed("basic-auth") {
		val, err := fs.GetString("basic-auth")
		if err != nil {
			return err
		}
		user, pass, ok := strings.Cut(val, ":")
		if !ok || strings.TrimSpace(user) == "" {
			return fmt.Errorf("basic-auth must be in user:password format")
		}
		cfg.BasicAuth = BasicAuthConfig{Username: strings.TrimSpace(user), Password: pass}
	}

	headers, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(headers) > 0 && cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	for _, entry := range headers {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("header must be in key=value format: %s", entry)
		}
		key = http.CanonicalHeaderKey(strings.TrimSpace(key))
		if key == "" {
			return fmt.Errorf("header key cannot be empty")
		}
		cfg.Headers[key] = strings.TrimSpace(value)
	}

	if fs.Changed("param") {
		val, err := fs.GetStringArray("param")
		if err != nil {
			return err
		}
		cfg.ExtraParams = append(cfg.ExtraParams, val...)
	}
	if fs.Changed("facet-field") {
		val, err := fs.GetStringSlice("facet-field")
		if err != nil {
			return err
		}
		cfg.Query.FacetFields = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	return nil
}
