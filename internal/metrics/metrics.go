// Package metrics records smoke-run outcomes in a dedicated Prometheus
// registry so a one-shot process can push them to a Pushgateway.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const job = "ecosort_smoke"

type Recorder struct {
	reg      *prometheus.Registry
	checks   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  prometheus.Gauge
	passed   prometheus.Gauge
	notified *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "ecosort", Subsystem: "smoke", Name: "checks_total", Help: "Smoke checks by outcome"},
			[]string{"check", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: "ecosort", Subsystem: "smoke", Name: "check_duration_seconds", Help: "Smoke check latency", Buckets: prometheus.DefBuckets},
			[]string{"check"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "ecosort", Subsystem: "smoke", Name: "last_run_timestamp_seconds", Help: "Unix time the last run finished"},
		),
		passed: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "ecosort", Subsystem: "smoke", Name: "last_run_passed", Help: "1 if every check of the last run passed"},
		),
		notified: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "ecosort", Subsystem: "smoke", Name: "notifications_total", Help: "Webhook deliveries by result"},
			[]string{"result"},
		),
	}
	r.reg.MustRegister(r.checks, r.duration, r.lastRun, r.passed, r.notified)
	return r
}

// Outcome labels.
const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
	OutcomeSkip = "skip"
)

func (r *Recorder) ObserveCheck(check, outcome string, d time.Duration) {
	r.checks.WithLabelValues(check, outcome).Inc()
	if outcome != OutcomeSkip {
		r.duration.WithLabelValues(check).Observe(d.Seconds())
	}
}

func (r *Recorder) MarkRun(finished time.Time, passed bool) {
	r.lastRun.Set(float64(finished.Unix()))
	if passed {
		r.passed.Set(1)
	} else {
		r.passed.Set(0)
	}
}

func (r *Recorder) IncNotification(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	r.notified.WithLabelValues(result).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Push sends the registry to the Pushgateway at url, grouped by instance.
func (r *Recorder) Push(ctx context.Context, url, instance string) error {
	return push.New(url, job).Gatherer(r.reg).Grouping("instance", instance).PushContext(ctx)
}
