// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus metrics for guide refresh runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream metrics
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plutoepg_upstream_requests_total",
		Help: "Upstream requests by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome=success|error|http_<code>

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plutoepg_upstream_request_duration_seconds",
		Help:    "Upstream request latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// Business metrics
	channelsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plutoepg_channels_total",
		Help: "Channels in the catalog (last refresh)",
	})

	timelineBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plutoepg_timeline_batches_total",
		Help: "Timeline batch fetches by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	programmesCollected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plutoepg_programmes_collected",
		Help: "Deduplicated programmes collected in last refresh",
	})

	programmesDropped = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "plutoepg_programmes_dropped",
		Help: "Programme entries dropped in last refresh by reason",
	}, []string{"reason"}) // reason=duplicate|invalid

	coverageComplete = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plutoepg_coverage_complete",
		Help: "Whether every window and batch of the last refresh succeeded (1) or not (0)",
	})

	aggregationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plutoepg_aggregation_duration_seconds",
		Help:    "Time spent collecting timelines for the whole horizon",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	xmltvProgrammesWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plutoepg_xmltv_programmes_written",
		Help: "Programmes written to XMLTV in last refresh",
	})
	xmltvWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plutoepg_xmltv_write_errors_total",
		Help: "Total number of XMLTV write failures",
	})

	// Error metrics for refresh stages
	refreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plutoepg_refresh_failures_total",
		Help: "Total number of refresh failures by stage",
	}, []string{"stage"}) // stage=app_version|session|channels|aggregate|write

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plutoepg_last_success_timestamp_seconds",
		Help: "Unix time of the last successful refresh",
	})
)

func ObserveUpstreamRequest(operation, outcome string, d time.Duration) {
	upstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func RecordChannels(n int) { channelsTotal.Set(float64(n)) }

func IncTimelineBatch(outcome string) { timelineBatchesTotal.WithLabelValues(outcome).Inc() }

// RecordAggregation records the outcome of one aggregation pass.
func RecordAggregation(programmes, duplicates, invalid, failedBatches int, duration time.Duration) {
	programmesCollected.Set(float64(programmes))
	programmesDropped.WithLabelValues("duplicate").Set(float64(duplicates))
	programmesDropped.WithLabelValues("invalid").Set(float64(invalid))
	if failedBatches == 0 {
		coverageComplete.Set(1)
	} else {
		coverageComplete.Set(0)
	}
	aggregationDurationSeconds.Observe(duration.Seconds())
}

func RecordXMLTV(programmes int, writeErr error) {
	if writeErr != nil {
		xmltvWriteErrors.Inc()
		return
	}
	xmltvProgrammesWritten.Set(float64(programmes))
}

func IncRefreshFailure(stage string) { refreshFailuresTotal.WithLabelValues(stage).Inc() }

func RecordSuccess(t time.Time) { lastSuccess.Set(float64(t.Unix())) }

// WriteTextfile dumps the default registry in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
