package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nmtd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nmtd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nmtd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nmtd",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Total 429/503 backpressure rejections",
		},
		[]string{"reason"},
	)

	// Translation-domain series. The gauges are sampled by the GET /cache
	// handler; pivot_used_total is incremented by acquireAndTranslate.
	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nmtd",
		Subsystem: "translate",
		Name:      "queue_waiting",
		Help:      "Current number of waiters in the translation admission queue",
	})
	queueInflightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nmtd",
		Subsystem: "translate",
		Name:      "queue_inflight",
		Help:      "Current number of inflight translation slots",
	})
	cacheSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nmtd",
		Subsystem: "translate",
		Name:      "cache_size",
		Help:      "Current number of pipelines held in the pipeline cache",
	})
	pivotUsedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nmtd",
		Subsystem: "translate",
		Name:      "pivot_used_total",
		Help:      "Total translations that required a pivot hop",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight, backpressureTotal,
		queueDepthGauge, queueInflightGauge, cacheSizeGauge, pivotUsedTotal,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments every request for Prometheus.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementBackpressure records a 429/503 rejection reason.
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
