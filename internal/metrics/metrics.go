// Package metrics exposes Prometheus instrumentation for the crawl pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched tracks the number of pages successfully fetched.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_pages_fetched_total",
		Help: "The total number of pages successfully fetched.",
	})
	// FetchErrors tracks fetches that failed with a navigation or network error.
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_fetch_errors_total",
		Help: "The total number of failed page fetches.",
	})
	// LinksDiscovered tracks anchors found across all fetched pages.
	LinksDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_links_discovered_total",
		Help: "The total number of outbound links discovered.",
	})
	// RobotsDenied tracks URLs refused by robots.txt or supplemental rules.
	RobotsDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_robots_denied_total",
		Help: "The total number of URLs denied by the robots policy.",
	})
	// BatchFlushes tracks successful batch upserts.
	BatchFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_batch_flushes_total",
		Help: "The total number of record batches flushed to storage.",
	})
	// BatchFlushFailures tracks batches dropped because the upsert failed.
	BatchFlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_batch_flush_failures_total",
		Help: "The total number of record batches lost to flush errors.",
	})
	// RecordsPersisted tracks individual records included in successful flushes.
	RecordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_records_persisted_total",
		Help: "The total number of link records upserted.",
	})
)
