package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Histogram: proxy HTTP latency in seconds, labelled by route pattern.
	RequestLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxy_request_duration_seconds",
			Help:    "HTTP request latency for the proxy in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route", "method", "status_code"},
	)

	// Counter: upstream calls by outcome (2xx, 4xx, 5xx, invalid, timeout, error).
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_upstream_requests_total",
			Help: "Total number of DeepSeek API calls by outcome.",
		},
		[]string{"outcome"},
	)

	UpstreamLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proxy_upstream_duration_seconds",
			Help:    "Latency of DeepSeek API calls in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_tokens_total",
			Help: "Tokens reported by the DeepSeek API, by model and kind.",
		},
		[]string{"model", "kind"},
	)
)

// knownModels bounds the model label of TokensTotal.
var knownModels = map[string]struct{}{
	"deepseek-chat":     {},
	"deepseek-reasoner": {},
	"deepseek-coder":    {},
	"unknown":           {},
}

// ModelLabel maps a model name to a TokensTotal label. Models outside the
// known set share "other", since the name can come from the client.
func ModelLabel(model string) string {
	if _, ok := knownModels[model]; ok {
		return model
	}
	return "other"
}

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		RequestLatencySeconds,
		UpstreamRequestsTotal,
		UpstreamLatencySeconds,
		TokensTotal,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusClass maps an HTTP status to its "2xx"-style class.
func StatusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// Middleware measures latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		// Route pattern keeps label cardinality bounded; unmatched paths share one label.
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		RequestLatencySeconds.
			WithLabelValues(route, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
