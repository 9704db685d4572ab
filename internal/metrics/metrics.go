// Package metrics holds the Prometheus collectors for archive fetches,
// week assembly and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// Archive metrics
	FetchTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	RowsParsed    prometheus.Counter
	RowsRetained  prometheus.Counter

	// Assembly metrics
	AssemblyTotal    *prometheus.CounterVec
	AssemblyDuration prometheus.Histogram
	DaysLoaded       prometheus.Histogram

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
}

// NewCollector registers the collectors on reg under namespace.
// A nil reg uses the default Prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		FetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_fetch_total",
				Help:      "Archive requests by outcome",
			},
			[]string{"outcome"}, // "ok", "fetch_error", "parse_error"
		),

		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "archive_fetch_duration_seconds",
				Help:      "Time to fetch and parse one daily export",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		RowsParsed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_rows_parsed_total",
				Help:      "Rows read from daily exports before cadence reduction",
			},
		),

		RowsRetained: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_rows_retained_total",
				Help:      "Rows kept after cadence reduction",
			},
		),

		AssemblyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "week_assembly_total",
				Help:      "Week assemblies by outcome",
			},
			[]string{"outcome"}, // "ok", "error"
		),

		AssemblyDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "week_assembly_duration_seconds",
				Help:      "Duration of a full week assembly",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		DaysLoaded: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "week_assembly_days",
				Help:      "Number of daily exports loaded per assembly",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 7},
			},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "day_cache_lookups_total",
				Help:      "Day cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss", "bypass"
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint"},
		),
	}
}

// RecordFetch records one daily export load.
func (c *Collector) RecordFetch(outcome string, duration time.Duration, parsed, retained int) {
	if c == nil {
		return
	}
	c.FetchTotal.WithLabelValues(outcome).Inc()
	c.FetchDuration.Observe(duration.Seconds())
	c.RowsParsed.Add(float64(parsed))
	c.RowsRetained.Add(float64(retained))
}

// RecordAssembly records one week assembly.
func (c *Collector) RecordAssembly(err error, duration time.Duration, days int) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.AssemblyTotal.WithLabelValues(outcome).Inc()
	c.AssemblyDuration.Observe(duration.Seconds())
	c.DaysLoaded.Observe(float64(days))
}

// RecordCacheLookup records a day cache hit, miss or bypass.
func (c *Collector) RecordCacheLookup(result string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// RecordAPIRequest records one API request.
func (c *Collector) RecordAPIRequest(endpoint, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	c.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
