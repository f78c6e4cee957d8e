package ports

import "github.com/gabrimonfa/spid-saml-check/internal/core/domain"

// AssertionRecorder accumulates assertion results into a hierarchical
// report keyed by the validation run's identity. It supports incremental
// nested insertion along path and merges results from both the rule
// engine and the scan orchestrator; the report is read once at the end
// for serialization.
type AssertionRecorder interface {
	Record(path []string, description string, result domain.AssertionResult)
}
