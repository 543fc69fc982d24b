package main

import (
	"github.com/torosent/querymeter/internal/metrics"
	"github.com/torosent/querymeter/internal/operation"
	"github.com/torosent/querymeter/internal/solr"
)

// solrExecutor submits through the Solr client and reports into the collector.
type solrExecutor struct {
	*solr.Client
	*metrics.Collector
}

var _ operation.Executor = solrExecutor{}
