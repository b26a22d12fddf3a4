package mockapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	collectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reqTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecosort",
		Subsystem: "mockapi",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	reqDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecosort",
		Subsystem: "mockapi",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func init() {
	// ignore AlreadyRegistered so tests and other binaries can share the default registry
	_ = prometheus.Register(collectors.NewGoCollector())
	_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	_ = prometheus.Register(reqTotal)
	_ = prometheus.Register(reqDuration)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.code = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		path := metricPath(r)
		reqTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.code)).Inc()
		reqDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// metricPath keeps label cardinality bounded: anything outside the served
// routes is folded into one series.
func metricPath(r *http.Request) string {
	if p := routePath(r); knownPaths[p] {
		return p
	}
	return "unmatched"
}

// PromHandler exposes the Prometheus handler for the mockapi binary.
func PromHandler() http.Handler { return promhttp.Handler() }
