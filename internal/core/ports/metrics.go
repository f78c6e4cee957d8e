package ports

// MetricsRecorder records compliance-check and scan metrics.
// This is a port interface - implementations are adapters.
type MetricsRecorder interface {
	// RecordCheck records one check execution with its outcome
	// ("pass", "fail" or "skipped").
	RecordCheck(checkID, outcome string)

	// RecordScanSubmitted records one scan submission for a host.
	RecordScanSubmitted(host string)

	// RecordScanResult records a terminal scan result.
	RecordScanResult(status, grade string)
}
