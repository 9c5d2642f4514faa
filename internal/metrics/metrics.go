// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for scraper_runs_total.
const (
	OutcomeSuccess = "success"
)

var (
	scraperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Total number of scrape runs, labeled by outcome (success or failing stage).",
		},
		[]string{"outcome"},
	)

	scraperListingsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_listings_persisted_total",
			Help: "Total number of listings committed to the store.",
		},
	)

	scraperListingsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_listings_per_run",
			Help:    "Histogram of listings extracted per successful fetch.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	scraperStageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_stage_duration_seconds",
			Help:    "Histogram of pipeline stage latencies, labeled by stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	scraperFetchedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetched_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	scraperSideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_side_effect_failures_total",
			Help: "Best-effort steps that failed without failing the run, labeled by effect.",
		},
		[]string{"effect"},
	)

	scraperRateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the outbound rate limiter, labeled by site.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"site"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveRun counts one finished scrape.
func ObserveRun(outcome string) {
	scraperRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, duration time.Duration) {
	scraperStageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveFetch records the size of a fetched page.
func ObserveFetch(site string, bytesFetched int) {
	if bytesFetched > 0 {
		scraperFetchedBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveExtracted records how many listings one page produced.
func ObserveExtracted(count int) {
	scraperListingsPerRun.Observe(float64(count))
}

// ObservePersisted adds committed listings.
func ObservePersisted(count int) {
	scraperListingsPersistedTotal.Add(float64(count))
}

// ObserveSideEffectFailure counts a failed snapshot or notification.
func ObserveSideEffectFailure(effect string) {
	scraperSideEffectFailuresTotal.WithLabelValues(effect).Inc()
}

// ObserveRateLimitDelay records a wait imposed by the outbound limiter.
func ObserveRateLimitDelay(site string, delay time.Duration) {
	scraperRateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
