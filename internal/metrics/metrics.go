package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depthscale_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "depthscale_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depthscale_conversions_total",
			Help: "Depth-scale conversions by outcome.",
		},
		[]string{"outcome"},
	)

	conversionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depthscale_conversion_duration_seconds",
			Help:    "Depth-scale conversion duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)

	conversionPoints = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depthscale_conversion_points",
			Help:    "Number of depth points per conversion.",
			Buckets: []float64{1, 10, 50, 100, 200, 500, 1000, 5000},
		},
	)

	modelsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "depthscale_models_stored",
			Help: "Number of model atmospheres in the library.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(conversionsTotal)
	prometheus.MustRegister(conversionDurationSeconds)
	prometheus.MustRegister(conversionPoints)
	prometheus.MustRegister(modelsStored)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Conversion outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeEOSError     = "eos_error"
	OutcomeInvalidInput = "invalid_input"
)

// RecordConversion records one conversion attempt. Duration and size are
// observed for successful conversions only.
func RecordConversion(d time.Duration, points int, outcome string) {
	conversionsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeOK {
		return
	}
	conversionDurationSeconds.Observe(d.Seconds())
	conversionPoints.Observe(float64(points))
}

// SetModelsStored sets the model library size gauge.
func SetModelsStored(n int) {
	modelsStored.Set(float64(n))
}

// normalizeRoute maps request paths to a bounded set of labels.
func normalizeRoute(path string) string {
	switch path {
	case "/", "/healthz", "/readyz", "/metrics", "/api/v1/convert", "/api/v1/models":
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/models/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/convert") {
			return "/api/v1/models/{name}/convert"
		}
		if !strings.Contains(rest, "/") {
			return "/api/v1/models/{name}"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
