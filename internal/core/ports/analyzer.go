package ports

import "context"

// AnalyzeOptions control a single analyze call against the TLS
// assessment service. StartNew and FromCache are mutually exclusive.
type AnalyzeOptions struct {
	StartNew  bool
	FromCache bool
}

// AnalyzedEndpoint is the per-endpoint portion of an analysis report.
type AnalyzedEndpoint struct {
	Grade      string
	ETASeconds int
}

// AnalysisReport is one response from the TLS assessment service.
// Terminal statuses are "READY" and "ERROR"; any other status means
// polling should continue.
type AnalysisReport struct {
	Status        string
	StatusMessage string
	Endpoints     []AnalyzedEndpoint
}

// Terminal reports whether the analysis reached a terminal status.
func (r AnalysisReport) Terminal() bool {
	return r.Status == "READY" || r.Status == "ERROR"
}

// ETASeconds returns the first positive estimated-time-to-completion
// reported by any endpoint, or 0 when none is available.
func (r AnalysisReport) ETASeconds() int {
	for _, e := range r.Endpoints {
		if e.ETASeconds > 0 {
			return e.ETASeconds
		}
	}
	return 0
}

// TLSAnalyzer submits and queries TLS capability scans for a host.
// This is a port interface - implementations are adapters.
type TLSAnalyzer interface {
	Analyze(ctx context.Context, host string, opts AnalyzeOptions) (AnalysisReport, error)
}
