// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal          *prometheus.CounterVec
	tasksTotal                 *prometheus.CounterVec
	audiobooksIngestedTotal    prometheus.Counter
	notificationsUpsertedTotal *prometheus.CounterVec
	cacheRequestsTotal         *prometheus.CounterVec
	searchDurationSeconds      prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_pages_fetched_total",
				Help: "Total number of source pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tasks_total",
				Help: "Total number of queue tasks processed, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		audiobooksIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_audiobooks_ingested_total",
				Help: "Total number of audiobooks persisted.",
			},
		)

		notificationsUpsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_notifications_upserted_total",
				Help: "Total number of notification upserts, labeled by reason.",
			},
			[]string{"reason"},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_cache_requests_total",
				Help: "Total read-path cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		searchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_search_duration_seconds",
				Help:    "Histogram of hybrid search latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the page fetch counter.
func ObserveFetch(site string, status int) {
	Init()
	pagesFetchedTotal.WithLabelValues(SanitizeSite(site), strconv.Itoa(status)).Inc()
}

// ObserveTask increments the task counter for the given kind and outcome.
func ObserveTask(kind, outcome string) {
	Init()
	tasksTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveIngested increments the persisted-audiobook counter.
func ObserveIngested() {
	Init()
	audiobooksIngestedTotal.Inc()
}

// ObserveNotification adds the number of upserted notifications for one
// fan-out reason.
func ObserveNotification(reason string, count int) {
	Init()
	notificationsUpsertedTotal.WithLabelValues(reason).Add(float64(count))
}

// ObserveCacheLookup increments the cache lookup counter ("hit" or "miss").
func ObserveCacheLookup(result string) {
	Init()
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveSearch records the duration of one hybrid search.
func ObserveSearch(duration time.Duration) {
	Init()
	searchDurationSeconds.Observe(duration.Seconds())
}
