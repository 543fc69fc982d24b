package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/torosent/querymeter/internal/config"
	"github.com/torosent/querymeter/internal/logger"
	"github.com/torosent/querymeter/internal/operation"
	"github.com/torosent/querymeter/internal/selector"
)

// buildSources loads every configured selector file. Sources without a file
// are empty pools; inline facet fields take effect when no facet file is set.
func buildSources(ctx context.Context, q config.QueryConfig) (operation.Sources, error) {
	log := logger.FromContext(ctx)
	opts := selector.LoadOptions{Column: q.Column}

	load := func(name, path string, seed int64) (*selector.Pool, error) {
		if path == "" {
			return selector.NewPool(nil, seed), nil
		}
		src, err := selector.NewFileSource(path, opts, seed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if src.Len() == 0 {
			log.Warn("selector file has no values", zap.String("source", name), zap.String("path", src.Path()))
		}
		if q.WatchFiles {
			if err := src.Watch(ctx, log); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		return src.Pool, nil
	}

	// Each source gets its own seed so a fixed seed does not correlate picks.
	seed := func(offset int64) int64 {
		if q.Seed == 0 {
			return 0
		}
		return q.Seed + offset
	}

	queries, err := load("queries", q.QueriesFile, seed(0))
	if err != nil {
		return operation.Sources{}, err
	}
	filters, err := load("filter queries", q.FilterQueriesFile, seed(1))
	if err != nil {
		return operation.Sources{}, err
	}
	extras, err := load("extra params", q.ExtraParamsFile, seed(3))
	if err != nil {
		return operation.Sources{}, err
	}

	var facets *selector.Pool
	if q.FacetFieldsFile == "" && len(q.FacetFields) > 0 {
		facets = selector.NewPool(q.FacetFields, seed(2))
	} else if facets, err = load("facet fields", q.FacetFieldsFile, seed(2)); err != nil {
		return operation.Sources{}, err
	}

	return operation.Sources{
		Queries:       queries,
		FilterQueries: filters,
		FacetFields:   facets,
		ExtraParams:   extras,
	}, nil
}

func toOperationConfig(q config.QueryConfig) operation.Config {
	mode := operation.ModeInternal
	if q.Mode == config.QueryModeExternal {
		mode = operation.ModeExternal
	}
	return operation.Config{
		Mode:                 mode,
		UseFacets:            q.UseFacets,
		FacetMinCount:        q.FacetMinCount,
		FacetLimit:           q.FacetLimit,
		FacetMethod:          q.FacetMethod,
		UseFilterQueries:     q.UseFilterQueries,
		AddRandomExtraParams: q.AddRandomExtraParams,
	}
}
