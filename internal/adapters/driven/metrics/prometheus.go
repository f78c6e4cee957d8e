package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	checksTotal         *prometheus.CounterVec
	scansSubmittedTotal prometheus.Counter
	scanResultsTotal    *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics
// recorder with a custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	checksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spid_check_checks_total",
		Help: "Total compliance check executions",
	}, []string{"check", "outcome"})

	scansSubmittedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spid_check_scans_submitted_total",
		Help: "Total TLS scan submissions",
	})

	scanResultsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spid_check_scan_results_total",
		Help: "Total terminal TLS scan results",
	}, []string{"status", "grade"})

	reg.MustRegister(
		checksTotal,
		scansSubmittedTotal,
		scanResultsTotal,
	)

	return &PrometheusMetricsRecorder{
		checksTotal:         checksTotal,
		scansSubmittedTotal: scansSubmittedTotal,
		scanResultsTotal:    scanResultsTotal,
	}
}

// RecordCheck records one check execution with its outcome.
func (r *PrometheusMetricsRecorder) RecordCheck(checkID, outcome string) {
	r.checksTotal.WithLabelValues(checkID, outcome).Inc()
}

// RecordScanSubmitted records one scan submission.
func (r *PrometheusMetricsRecorder) RecordScanSubmitted(host string) {
	r.scansSubmittedTotal.Inc()
}

// RecordScanResult records a terminal scan result.
func (r *PrometheusMetricsRecorder) RecordScanResult(status, grade string) {
	if grade == "" {
		grade = "none"
	}
	r.scanResultsTotal.WithLabelValues(status, grade).Inc()
}

var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
