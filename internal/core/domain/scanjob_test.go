//go:build unit

package domain

import "testing"

// TestScanJob_AdvanceForward verifies the normal lifecycle progression.
func TestScanJob_AdvanceForward(t *testing.T) {
	job := NewScanJob("sp.example.org")
	if job.State != ScanPending {
		t.Fatalf("new job state = %s, want %s", job.State, ScanPending)
	}

	for _, to := range []ScanState{ScanQueued, ScanInProgress, ScanReady} {
		var err error
		job, err = job.Advance(to)
		if err != nil {
			t.Fatalf("Advance(%s) failed: %v", to, err)
		}
		if job.State != to {
			t.Fatalf("state = %s, want %s", job.State, to)
		}
	}
}

// TestScanJob_AdvanceRejectsRegression verifies a job never moves backward.
func TestScanJob_AdvanceRejectsRegression(t *testing.T) {
	job := NewScanJob("sp.example.org")
	job, _ = job.Advance(ScanInProgress)

	if _, err := job.Advance(ScanQueued); err == nil {
		t.Error("regression from InProgress to Queued should error")
	}
}

// TestScanJob_TerminalIsFinal verifies terminal jobs reject any further
// transition to a different state.
func TestScanJob_TerminalIsFinal(t *testing.T) {
	job := NewScanJob("sp.example.org")
	job, _ = job.Advance(ScanError)

	if !job.State.Terminal() {
		t.Fatal("Error should be terminal")
	}
	if _, err := job.Advance(ScanReady); err == nil {
		t.Error("transition out of a terminal state should error")
	}
	if _, err := job.Advance(ScanError); err != nil {
		t.Errorf("staying in the same terminal state should be allowed: %v", err)
	}
}

// TestScanJob_AdvanceSameStateAllowed verifies a poll that observes no
// progress is not an error.
func TestScanJob_AdvanceSameStateAllowed(t *testing.T) {
	job := NewScanJob("sp.example.org")
	job, _ = job.Advance(ScanInProgress)

	if _, err := job.Advance(ScanInProgress); err != nil {
		t.Errorf("same-state transition should be allowed: %v", err)
	}
}

// TestGradeCompliant verifies only A grades count as compliant and the
// comparison is exact.
func TestGradeCompliant(t *testing.T) {
	for _, g := range []string{"A+", "A", "A-"} {
		if !GradeCompliant(g) {
			t.Errorf("grade %s should be compliant", g)
		}
	}
	for _, g := range []string{"B", "a", "A+ ", "F", "T", ""} {
		if GradeCompliant(g) {
			t.Errorf("grade %q should not be compliant", g)
		}
	}
}
