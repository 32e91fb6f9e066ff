// SPDX-License-Identifier: MIT

// Package metrics registers the Prometheus collectors for build, lint,
// cache, and file-serving activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "md2site_builds_total",
		Help: "Completed builds by outcome",
	}, []string{"outcome"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "md2site_build_duration_seconds",
		Help:    "Wall clock duration of full site builds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	buildPages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "md2site_build_pages",
		Help: "Pages processed by the most recent build",
	})

	lintFindings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "md2site_lint_findings",
		Help: "Lint findings from the most recent build, by rule",
	}, []string{"rule"})

	cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "md2site_render_cache_ops_total",
		Help: "Render cache operations by result",
	}, []string{"result"})

	fileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "md2site_file_requests_total",
		Help: "Artifact file server requests by outcome",
	}, []string{"outcome", "reason"})
)

// RecordBuild records one completed build.
func RecordBuild(outcome string, duration time.Duration, pages int) {
	buildTotal.WithLabelValues(outcome).Inc()
	buildDuration.Observe(duration.Seconds())
	buildPages.Set(float64(pages))
}

// RecordLintFindings sets the finding gauge for one rule.
func RecordLintFindings(rule string, count int) {
	lintFindings.WithLabelValues(rule).Set(float64(count))
}

// ResetLintFindings clears all rule gauges. Called before recording a
// fresh report so rules with no findings this build drop to absent
// instead of keeping last build's count.
func ResetLintFindings() {
	lintFindings.Reset()
}

// RecordCacheHit counts a render served from cache.
func RecordCacheHit() { cacheOps.WithLabelValues("hit").Inc() }

// RecordCacheMiss counts a render that had to run.
func RecordCacheMiss() { cacheOps.WithLabelValues("miss").Inc() }

// RecordFileRequestAllowed counts a served artifact file.
func RecordFileRequestAllowed() {
	fileRequests.WithLabelValues("allowed", "").Inc()
}

// RecordFileRequestDenied counts a rejected artifact request.
func RecordFileRequestDenied(reason string) {
	fileRequests.WithLabelValues("denied", reason).Inc()
}
