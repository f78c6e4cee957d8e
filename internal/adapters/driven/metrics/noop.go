package metrics

import (
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// NoopMetricsRecorder is a no-op implementation for when metrics are disabled.
// All methods are safe to call and do nothing.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a new no-op metrics recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

// RecordCheck is a no-op.
func (n *NoopMetricsRecorder) RecordCheck(checkID, outcome string) {}

// RecordScanSubmitted is a no-op.
func (n *NoopMetricsRecorder) RecordScanSubmitted(host string) {}

// RecordScanResult is a no-op.
func (n *NoopMetricsRecorder) RecordScanResult(status, grade string) {}

// Ensure NoopMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*NoopMetricsRecorder)(nil)
