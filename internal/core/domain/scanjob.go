package domain

import (
	"fmt"
	"time"
)

// ScanState is the lifecycle state of a TLS capability scan for one host.
// States only ever advance: Pending -> Queued -> InProgress -> {Ready | Error}.
type ScanState string

const (
	ScanPending    ScanState = "Pending"
	ScanQueued     ScanState = "Queued"
	ScanInProgress ScanState = "InProgress"
	ScanReady      ScanState = "Ready"
	ScanError      ScanState = "Error"
)

// scanStateRank orders states for regression detection. Ready and Error
// share the terminal rank; a job never moves between them.
var scanStateRank = map[ScanState]int{
	ScanPending:    0,
	ScanQueued:     1,
	ScanInProgress: 2,
	ScanReady:      3,
	ScanError:      3,
}

// Terminal reports whether the state is a terminal state.
func (s ScanState) Terminal() bool {
	return s == ScanReady || s == ScanError
}

// ScanJob tracks the assessment of a single host. Jobs are passed by
// value; Advance returns the updated job rather than mutating in place.
type ScanJob struct {
	Host      string
	State     ScanState
	Grade     string
	Message   string
	Attempts  int
	LastDelay time.Duration

	// FromCache marks a grade served by the local cache without any
	// remote submission.
	FromCache bool
}

// NewScanJob creates a pending job for a host.
func NewScanJob(host string) ScanJob {
	return ScanJob{Host: host, State: ScanPending}
}

// Advance moves the job to a new state. Regressions and transitions out
// of a terminal state are rejected; staying in the same state is allowed
// (a poll that observes no progress).
func (j ScanJob) Advance(to ScanState) (ScanJob, error) {
	if j.State.Terminal() && to != j.State {
		return j, fmt.Errorf("scan job for %s is already %s", j.Host, j.State)
	}
	if scanStateRank[to] < scanStateRank[j.State] {
		return j, fmt.Errorf("scan job for %s cannot regress from %s to %s", j.Host, j.State, to)
	}
	j.State = to
	return j, nil
}

// CompliantGrades are the TLS grades accepted as compliant.
var CompliantGrades = []string{"A+", "A", "A-"}

// GradeCompliant reports whether a reported TLS grade meets the minimum
// configuration grade. Comparison is exact and case-sensitive.
func GradeCompliant(grade string) bool {
	for _, g := range CompliantGrades {
		if grade == g {
			return true
		}
	}
	return false
}
