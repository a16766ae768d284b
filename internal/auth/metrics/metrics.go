// Package metrics exposes the auth server's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters.
const (
	ResultOK          = "ok"
	ResultRejected    = "rejected"
	ResultRateLimited = "rate_limited"
	ResultInvalid     = "invalid"
	ResultError       = "error"
)

// Recorder is what services report to. Collector implements it; Nop
// discards everything.
type Recorder interface {
	RecordVerify(result string)
	RecordPasswordReset(result string)
	RecordProfileOp(op, code string)
}

type Collector struct {
	verify        *prometheus.CounterVec
	passwordReset *prometheus.CounterVec
	profileOps    *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	httpLatency   prometheus.Histogram
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medrec_token_verifications_total",
			Help: "Bearer token verifications by result.",
		}, []string{"result"}),
		passwordReset: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medrec_password_reset_requests_total",
			Help: "Password reset requests by result.",
		}, []string{"result"}),
		profileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medrec_profile_operations_total",
			Help: "Profile reads and writes by operation and error code.",
		}, []string{"op", "code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medrec_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medrec_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.verify,
		c.passwordReset,
		c.profileOps,
		c.httpStatus,
		c.httpLatency,
	)
	return c
}

func (c *Collector) RecordVerify(result string) {
	c.verify.WithLabelValues(result).Inc()
}

func (c *Collector) RecordPasswordReset(result string) {
	c.passwordReset.WithLabelValues(result).Inc()
}

// RecordProfileOp counts a profile operation. code is "" on success.
func (c *Collector) RecordProfileOp(op, code string) {
	if code == "" {
		code = ResultOK
	}
	c.profileOps.WithLabelValues(op, code).Inc()
}

func (c *Collector) RecordHTTP(status int, d time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(d.Seconds())
}

// Middleware records the status and latency of every request.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.RecordHTTP(sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that records nothing.
type Nop struct{}

func (Nop) RecordVerify(string) {}
func (Nop) RecordPasswordReset(string) {}
func (Nop) RecordProfileOp(string, string) {}
