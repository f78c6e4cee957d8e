//go:build unit

package scan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// fakeAnalyzer replays a scripted report sequence per host and records
// the order of calls.
type fakeAnalyzer struct {
	scripts  map[string][]ports.AnalysisReport
	failWith error
	calls    []string
	lastOpts ports.AnalyzeOptions
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, host string, opts ports.AnalyzeOptions) (ports.AnalysisReport, error) {
	f.calls = append(f.calls, host)
	f.lastOpts = opts
	if f.failWith != nil {
		return ports.AnalysisReport{}, f.failWith
	}
	script := f.scripts[host]
	if len(script) == 0 {
		return ports.AnalysisReport{Status: "READY"}, nil
	}
	report := script[0]
	if len(script) > 1 {
		f.scripts[host] = script[1:]
	}
	return report, nil
}

type fakeCache struct {
	grades map[string]string
	puts   map[string]string
	gets   int
}

func (c *fakeCache) Get(ctx context.Context, host string) (string, bool, error) {
	c.gets++
	grade, ok := c.grades[host]
	return grade, ok, nil
}

func (c *fakeCache) Put(ctx context.Context, host, grade string) error {
	if c.puts == nil {
		c.puts = map[string]string{}
	}
	c.puts[host] = grade
	return nil
}

func (c *fakeCache) Close() error { return nil }

type recordedAssertion struct {
	path   []string
	result domain.AssertionResult
}

type assertionCapture struct {
	entries []recordedAssertion
}

func (c *assertionCapture) Record(path []string, description string, result domain.AssertionResult) {
	c.entries = append(c.entries, recordedAssertion{
		path:   append([]string{}, path...),
		result: result,
	})
}

// rawAssertionCapture retains the path slices exactly as handed over.
type rawAssertionCapture struct {
	paths [][]string
}

func (c *rawAssertionCapture) Record(path []string, description string, result domain.AssertionResult) {
	c.paths = append(c.paths, path)
}

func ready(grades ...string) ports.AnalysisReport {
	report := ports.AnalysisReport{Status: "READY"}
	for _, g := range grades {
		report.Endpoints = append(report.Endpoints, ports.AnalyzedEndpoint{Grade: g})
	}
	return report
}

func inProgress(eta int) ports.AnalysisReport {
	return ports.AnalysisReport{
		Status:    "IN_PROGRESS",
		Endpoints: []ports.AnalyzedEndpoint{{ETASeconds: eta}},
	}
}

func acsEndpoint(host string) domain.EndpointDescriptor {
	return domain.NewEndpointDescriptor("https://"+host+"/acs", domain.ServiceACS)
}

func noSleep(time.Duration) {}

var basePath = []string{"sp", "metadata_strict"}

// TestAssess_CompliantGradePasses verifies an A grade yields a passing
// assertion recorded under the endpoint's service kind.
func TestAssess_CompliantGradePasses(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {ready("A")},
	}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	if err := o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath); err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	if len(rec.entries) != 1 {
		t.Fatalf("got %d assertions, want 1", len(rec.entries))
	}
	entry := rec.entries[0]
	if !entry.result.Passed() {
		t.Errorf("assertion failed: %s", entry.result.Message)
	}
	wantPath := "sp.metadata_strict.AssertionConsumerService.tls12_support"
	if got := strings.Join(entry.path, "."); got != wantPath {
		t.Errorf("path = %s, want %s", got, wantPath)
	}
}

// TestAssess_NonCompliantGradeFails verifies grades below A- fail.
func TestAssess_NonCompliantGradeFails(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {ready("B")},
	}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath)

	if len(rec.entries) != 1 || rec.entries[0].result.Passed() {
		t.Fatalf("expected one failing assertion, got %+v", rec.entries)
	}
	if !strings.Contains(rec.entries[0].result.Message, `grade "B" is not one of`) {
		t.Errorf("unexpected message: %s", rec.entries[0].result.Message)
	}
}

// TestAssess_WorstEndpointGradeWins verifies a host with one weak
// endpoint never passes on the strength of another.
func TestAssess_WorstEndpointGradeWins(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {ready("A+", "F")},
	}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath)

	if len(rec.entries) != 1 || rec.entries[0].result.Passed() {
		t.Fatalf("expected one failing assertion, got %+v", rec.entries)
	}
}

// TestAssess_SharedHostYieldsPerEndpointAssertions verifies descriptors
// sharing a host are submitted once but each get their own assertion.
func TestAssess_SharedHostYieldsPerEndpointAssertions(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {ready("A")},
	}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	endpoints := []domain.EndpointDescriptor{
		domain.NewEndpointDescriptor("https://sp.example.org/acs", domain.ServiceACS),
		domain.NewEndpointDescriptor("https://sp.example.org/slo", domain.ServiceSLO),
	}
	_ = o.Assess(context.Background(), endpoints, rec, basePath)

	if len(analyzer.calls) != 1 {
		t.Errorf("analyzer called %d times, want 1", len(analyzer.calls))
	}
	if len(rec.entries) != 2 {
		t.Fatalf("got %d assertions, want 2", len(rec.entries))
	}
	kinds := map[string]bool{}
	for _, e := range rec.entries {
		kinds[e.path[2]] = true
	}
	if !kinds["AssertionConsumerService"] || !kinds["SingleLogoutService"] {
		t.Errorf("expected one assertion per service kind, got %v", kinds)
	}
}

// TestAssess_PollsUsingReportedETA verifies the delay before the next
// poll comes from the freshest report, falling back to the default when
// no estimate is given.
func TestAssess_PollsUsingReportedETA(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {
			inProgress(7),
			{Status: "IN_PROGRESS"},
			ready("A"),
		},
	}}
	rec := &assertionCapture{}

	var slept []time.Duration
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: 10 * time.Second},
		withSleep(func(d time.Duration) { slept = append(slept, d) }))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath)

	want := []time.Duration{7 * time.Second, 10 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %s, want %s", i, slept[i], want[i])
		}
	}
	if len(rec.entries) != 1 || !rec.entries[0].result.Passed() {
		t.Fatalf("expected one passing assertion, got %+v", rec.entries)
	}
}

// TestAssess_ErrorStatusFails verifies an ERROR report yields a failing
// assertion carrying the service's status message.
func TestAssess_ErrorStatusFails(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {{Status: "ERROR", StatusMessage: "unable to resolve domain name"}},
	}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath)

	if len(rec.entries) != 1 || rec.entries[0].result.Passed() {
		t.Fatalf("expected one failing assertion, got %+v", rec.entries)
	}
	if !strings.Contains(rec.entries[0].result.Message, "unable to resolve domain name") {
		t.Errorf("unexpected message: %s", rec.entries[0].result.Message)
	}
}

// TestAssess_AnalyzerErrorFails verifies a transport failure resolves the
// job as an error instead of aborting the run.
func TestAssess_AnalyzerErrorFails(t *testing.T) {
	analyzer := &fakeAnalyzer{failWith: errors.New("connection refused")}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	if err := o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath); err != nil {
		t.Fatalf("Assess should not fail: %v", err)
	}
	if len(rec.entries) != 1 || rec.entries[0].result.Passed() {
		t.Fatalf("expected one failing assertion, got %+v", rec.entries)
	}
}

// TestAssess_SkipEmitsNothing verifies Skip disables scanning entirely.
func TestAssess_SkipEmitsNothing(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Skip: true}, withSleep(noSleep))

	if err := o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath); err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if len(analyzer.calls) != 0 {
		t.Errorf("analyzer called %d times, want 0", len(analyzer.calls))
	}
	if len(rec.entries) != 0 {
		t.Errorf("got %d assertions, want 0", len(rec.entries))
	}
}

// TestAssess_CacheHitSkipsSubmission verifies a cached grade resolves the
// job without touching the analyzer or re-storing the grade.
func TestAssess_CacheHitSkipsSubmission(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	cache := &fakeCache{grades: map[string]string{"sp.example.org": "A+"}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second},
		WithGradeCache(cache), withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath)

	if len(analyzer.calls) != 0 {
		t.Errorf("analyzer called %d times, want 0", len(analyzer.calls))
	}
	if len(rec.entries) != 1 || !rec.entries[0].result.Passed() {
		t.Fatalf("expected one passing assertion, got %+v", rec.entries)
	}
	if len(cache.puts) != 0 {
		t.Errorf("cached grade should not be re-stored, got %v", cache.puts)
	}
}

// TestAssess_FreshGradeStored verifies a fresh terminal grade lands in
// the cache.
func TestAssess_FreshGradeStored(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {ready("A-")},
	}}
	cache := &fakeCache{grades: map[string]string{}}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second},
		WithGradeCache(cache), withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, &assertionCapture{}, basePath)

	if cache.puts["sp.example.org"] != "A-" {
		t.Errorf("stored grades = %v, want A- for sp.example.org", cache.puts)
	}
}

// TestAssess_ForceNewBypassesCacheAndStartsFresh verifies ForceNew skips
// the local cache and asks the service for a fresh assessment.
func TestAssess_ForceNewBypassesCacheAndStartsFresh(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {ready("A")},
	}}
	cache := &fakeCache{grades: map[string]string{"sp.example.org": "A+"}}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second, ForceNew: true},
		WithGradeCache(cache), withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, &assertionCapture{}, basePath)

	if cache.gets != 0 {
		t.Errorf("cache consulted %d times, want 0", cache.gets)
	}
	if len(analyzer.calls) != 1 {
		t.Fatalf("analyzer called %d times, want 1", len(analyzer.calls))
	}
	if !analyzer.lastOpts.StartNew {
		t.Error("ForceNew should request a fresh assessment")
	}
}

// TestAssess_BatchesRespectParallelism verifies the next batch is not
// submitted until the current batch fully resolves.
func TestAssess_BatchesRespectParallelism(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"one.example.org":   {inProgress(1), ready("A")},
		"two.example.org":   {ready("A")},
		"three.example.org": {ready("A")},
	}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	endpoints := []domain.EndpointDescriptor{
		acsEndpoint("one.example.org"),
		acsEndpoint("two.example.org"),
		acsEndpoint("three.example.org"),
	}
	_ = o.Assess(context.Background(), endpoints, rec, basePath)

	want := []string{"one.example.org", "two.example.org", "one.example.org", "three.example.org"}
	if strings.Join(analyzer.calls, ",") != strings.Join(want, ",") {
		t.Errorf("call order = %v, want %v", analyzer.calls, want)
	}
	if len(rec.entries) != 3 {
		t.Errorf("got %d assertions, want 3", len(rec.entries))
	}
}

// TestAssess_MaxPollAttemptsBoundsPolling verifies the optional attempt
// bound turns a never-ending scan into an error.
func TestAssess_MaxPollAttemptsBoundsPolling(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {{Status: "IN_PROGRESS"}},
	}}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Millisecond, MaxPollAttempts: 3}, withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{acsEndpoint("sp.example.org")}, rec, basePath)

	if len(rec.entries) != 1 || rec.entries[0].result.Passed() {
		t.Fatalf("expected one failing assertion, got %+v", rec.entries)
	}
	if !strings.Contains(rec.entries[0].result.Message, "no terminal state after 3 poll attempts") {
		t.Errorf("unexpected message: %s", rec.entries[0].result.Message)
	}
}

// TestAssess_EmptyHostFails verifies a descriptor whose location has no
// parseable host fails without any submission.
func TestAssess_EmptyHostFails(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	rec := &assertionCapture{}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	_ = o.Assess(context.Background(), []domain.EndpointDescriptor{{Location: "not a url", Kind: domain.ServiceACS}}, rec, basePath)

	if len(analyzer.calls) != 0 {
		t.Errorf("analyzer called %d times, want 0", len(analyzer.calls))
	}
	if len(rec.entries) != 1 || rec.entries[0].result.Passed() {
		t.Fatalf("expected one failing assertion, got %+v", rec.entries)
	}
}

// TestPoll_TerminalJobUnchanged verifies polling never regresses a
// terminal job.
func TestPoll_TerminalJobUnchanged(t *testing.T) {
	job := domain.ScanJob{Host: "sp.example.org", State: domain.ScanReady, Grade: "A"}

	next, delay := Poll(job, inProgress(30), 10*time.Second)

	if next.State != domain.ScanReady || next.Grade != "A" {
		t.Errorf("terminal job changed: %+v", next)
	}
	if delay != 0 {
		t.Errorf("delay = %s, want 0", delay)
	}
}

// TestPoll_InProgressAdvancesAndCountsAttempt verifies the non-terminal
// step bumps Attempts and carries the freshest delay.
func TestPoll_InProgressAdvancesAndCountsAttempt(t *testing.T) {
	job := domain.NewScanJob("sp.example.org")
	job, _ = job.Advance(domain.ScanQueued)

	next, delay := Poll(job, inProgress(42), 10*time.Second)

	if next.State != domain.ScanInProgress {
		t.Errorf("state = %s, want InProgress", next.State)
	}
	if next.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", next.Attempts)
	}
	if delay != 42*time.Second || next.LastDelay != delay {
		t.Errorf("delay = %s, want 42s", delay)
	}
}

// TestAssess_RecordedPathsAreIndependent verifies retained path slices
// stay intact when the base path carries spare capacity and several
// descriptors record against it.
func TestAssess_RecordedPathsAreIndependent(t *testing.T) {
	analyzer := &fakeAnalyzer{scripts: map[string][]ports.AnalysisReport{
		"sp.example.org": {ready("A")},
	}}
	o := New(analyzer, Config{Parallelism: 2, DefaultDelay: time.Second}, withSleep(noSleep))

	base := make([]string, 0, 8)
	base = append(base, "sp", "metadata_strict")

	rec := &rawAssertionCapture{}
	endpoints := []domain.EndpointDescriptor{
		domain.NewEndpointDescriptor("https://sp.example.org/acs", domain.ServiceACS),
		domain.NewEndpointDescriptor("https://sp.example.org/slo", domain.ServiceSLO),
	}
	if err := o.Assess(context.Background(), endpoints, rec, base); err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	if len(rec.paths) != 2 {
		t.Fatalf("recorder got %d entries, want 2", len(rec.paths))
	}
	if got := strings.Join(rec.paths[0], "."); got != "sp.metadata_strict.AssertionConsumerService.tls12_support" {
		t.Errorf("first retained path = %s", got)
	}
	if got := strings.Join(rec.paths[1], "."); got != "sp.metadata_strict.SingleLogoutService.tls12_support" {
		t.Errorf("second retained path = %s", got)
	}
}
