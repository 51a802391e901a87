// Package metrics exposes Prometheus collectors for the thread reader service.
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
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec
	upstreamRequestsTotal          *prometheus.CounterVec
	upstreamRequestDurationSeconds *prometheus.HistogramVec
	walkSteps                      prometheus.Histogram
	threadsTotal                   *prometheus.CounterVec
	threadPosts                    prometheus.Histogram
	rateLimitDelaySeconds          *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sklonger_upstream_requests_total",
				Help: "Total upstream API calls, labeled by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		upstreamRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sklonger_upstream_request_duration_seconds",
				Help:    "Histogram of upstream API call latencies, labeled by endpoint.",
				Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"endpoint"},
		)

		walkSteps = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sklonger_walk_steps",
				Help:    "Number of upstream fetches issued per thread walk.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
		)

		threadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sklonger_threads_total",
				Help: "Total thread resolutions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		threadPosts = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sklonger_thread_posts",
				Help:    "Number of posts in successfully resolved threads.",
				Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sklonger_rate_limit_delay_seconds",
				Help:    "Histogram of outbound pacing waits, labeled by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
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
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveUpstream records one upstream API call.
func ObserveUpstream(endpoint, outcome string, duration time.Duration) {
	Init()
	upstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	upstreamRequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveWalkSteps records how many fetches a walk issued.
func ObserveWalkSteps(steps int) {
	Init()
	walkSteps.Observe(float64(steps))
}

// ObserveThread records a resolution outcome and, on success, the post count.
func ObserveThread(outcome string, posts int) {
	Init()
	threadsTotal.WithLabelValues(outcome).Inc()
	if posts > 0 {
		threadPosts.Observe(float64(posts))
	}
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}
