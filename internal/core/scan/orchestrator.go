// Package scan drives asynchronous, rate-limited TLS capability scans for
// the endpoints advertised in SP metadata, and grades the results.
package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// CheckID identifies the grading assertion emitted per endpoint.
const CheckID = "tls12_support"

const checkDescription = "Test the support of TLS 1.2 for Locations URL"

// Config is the explicit orchestrator configuration. The zero value is
// not usable; call Normalize or use the defaults from New.
type Config struct {
	// Parallelism caps how many jobs are open (submitted, unresolved)
	// at any time. Default 10.
	Parallelism int

	// ForceNew submits fresh scans instead of accepting assessments the
	// remote service already cached, and bypasses the local grade cache.
	ForceNew bool

	// Skip disables the orchestrator entirely: no work, no assertions.
	Skip bool

	// DefaultDelay is the poll delay used when the service reports no
	// estimated time to completion. Default 10s.
	DefaultDelay time.Duration

	// MaxPollAttempts bounds polling per job; 0 means poll until a
	// terminal state is observed, however long that takes.
	MaxPollAttempts int
}

func (c Config) normalized() Config {
	if c.Parallelism <= 0 {
		c.Parallelism = 10
	}
	if c.DefaultDelay <= 0 {
		c.DefaultDelay = 10 * time.Second
	}
	return c
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithGradeCache attaches a local grade cache consulted before submission
// and updated on Ready results.
func WithGradeCache(cache ports.GradeCache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// withSleep overrides the delay function; tests use it to avoid real
// waiting.
func withSleep(sleep func(time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// Orchestrator manages submission, caching, polling, and grading of TLS
// scans under a concurrency cap. At most Parallelism jobs are open at
// once; jobs in a batch are polled sequentially, in submission order,
// and the next batch starts only after every job in the current batch is
// terminal.
type Orchestrator struct {
	cfg      Config
	analyzer ports.TLSAnalyzer
	cache    ports.GradeCache
	metrics  ports.MetricsRecorder
	logger   *zap.Logger
	sleep    func(time.Duration)
}

// New creates an Orchestrator around a TLS analyzer.
func New(analyzer ports.TLSAnalyzer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg.normalized(),
		analyzer: analyzer,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Assess scans every distinct host among endpoints and records one grade
// assertion per endpoint descriptor. Host-level dedup is a scheduling
// optimization only: descriptors sharing a host each get their own
// assertion from the same terminal job.
func (o *Orchestrator) Assess(ctx context.Context, endpoints []domain.EndpointDescriptor, recorder ports.AssertionRecorder, basePath []string) error {
	if o.cfg.Skip {
		return nil
	}

	hosts, byHost := groupByHost(endpoints)

	for start := 0; start < len(hosts); start += o.cfg.Parallelism {
		end := start + o.cfg.Parallelism
		if end > len(hosts) {
			end = len(hosts)
		}
		batch := hosts[start:end]

		jobs := make([]domain.ScanJob, len(batch))
		delays := make([]time.Duration, len(batch))
		for i, host := range batch {
			jobs[i], delays[i] = o.submit(ctx, host)
		}

		// Sequential poll within the batch: one job at a time, in
		// submission order, until terminal.
		for i := range jobs {
			jobs[i] = o.pollUntilTerminal(ctx, jobs[i], delays[i])
			o.reap(ctx, jobs[i], byHost[jobs[i].Host], recorder, basePath)
		}
	}

	return nil
}

// submit opens a job for host: a cache hit resolves it immediately,
// otherwise one non-blocking analyze call is issued in start-new or
// from-cache mode depending on ForceNew.
func (o *Orchestrator) submit(ctx context.Context, host string) (domain.ScanJob, time.Duration) {
	job := domain.NewScanJob(host)

	if host == "" {
		job.State = domain.ScanError
		job.Message = "endpoint location has no valid host"
		return job, 0
	}

	if !o.cfg.ForceNew && o.cache != nil {
		grade, ok, err := o.cache.Get(ctx, host)
		if err != nil && o.logger != nil {
			o.logger.Warn("grade cache lookup failed", zap.String("host", host), zap.Error(err))
		}
		if ok {
			job.State = domain.ScanReady
			job.Grade = grade
			job.FromCache = true
			if o.logger != nil {
				o.logger.Debug("grade served from local cache",
					zap.String("host", host), zap.String("grade", grade))
			}
			return job, 0
		}
	}

	if o.metrics != nil {
		o.metrics.RecordScanSubmitted(host)
	}
	job, _ = job.Advance(domain.ScanQueued)

	report, err := o.analyzer.Analyze(ctx, host, o.analyzeOptions())
	if err != nil {
		job.State = domain.ScanError
		job.Message = fmt.Sprintf("assessment request failed: %v", err)
		return job, 0
	}
	return Poll(job, report, o.cfg.DefaultDelay)
}

// pollUntilTerminal waits delay, re-queries once, and repeats until the
// job is terminal. The delay for each round comes from the previous
// Poll step; no loop-carried state survives an iteration.
func (o *Orchestrator) pollUntilTerminal(ctx context.Context, job domain.ScanJob, delay time.Duration) domain.ScanJob {
	for !job.State.Terminal() {
		if o.cfg.MaxPollAttempts > 0 && job.Attempts >= o.cfg.MaxPollAttempts {
			job.State = domain.ScanError
			job.Message = fmt.Sprintf("no terminal state after %d poll attempts", job.Attempts)
			break
		}

		o.sleep(delay)

		report, err := o.analyzer.Analyze(ctx, job.Host, o.analyzeOptions())
		if err != nil {
			job.State = domain.ScanError
			job.Message = fmt.Sprintf("assessment request failed: %v", err)
			break
		}
		job, delay = Poll(job, report, o.cfg.DefaultDelay)
	}
	return job
}

// reap stores a fresh terminal grade in the cache and emits one grade
// assertion per endpoint descriptor of the job's host.
func (o *Orchestrator) reap(ctx context.Context, job domain.ScanJob, descriptors []domain.EndpointDescriptor, recorder ports.AssertionRecorder, basePath []string) {
	if job.State == domain.ScanReady && job.Grade != "" && !job.FromCache && o.cache != nil {
		if err := o.cache.Put(ctx, job.Host, job.Grade); err != nil && o.logger != nil {
			o.logger.Warn("grade cache store failed", zap.String("host", job.Host), zap.Error(err))
		}
	}
	if o.metrics != nil {
		o.metrics.RecordScanResult(string(job.State), job.Grade)
	}
	if o.logger != nil {
		o.logger.Info("scan resolved",
			zap.String("host", job.Host),
			zap.String("state", string(job.State)),
			zap.String("grade", job.Grade),
			zap.Int("attempts", job.Attempts),
			zap.Bool("from_cache", job.FromCache))
	}

	for _, d := range descriptors {
		result := GradeAssertion(d, job, basePath)
		if recorder != nil {
			// Fresh slice per entry: recorders may retain the path.
			path := append(append(make([]string, 0, len(basePath)+2), basePath...), string(d.Kind), CheckID)
			recorder.Record(path, checkDescription, result)
		}
	}
}

func (o *Orchestrator) analyzeOptions() ports.AnalyzeOptions {
	if o.cfg.ForceNew {
		return ports.AnalyzeOptions{StartNew: true}
	}
	return ports.AnalyzeOptions{FromCache: true}
}

// groupByHost returns the distinct hosts in first-seen order and the
// descriptors belonging to each.
func groupByHost(endpoints []domain.EndpointDescriptor) ([]string, map[string][]domain.EndpointDescriptor) {
	var hosts []string
	byHost := make(map[string][]domain.EndpointDescriptor)
	for _, d := range endpoints {
		if _, ok := byHost[d.Host]; !ok {
			hosts = append(hosts, d.Host)
		}
		byHost[d.Host] = append(byHost[d.Host], d)
	}
	return hosts, byHost
}

// Poll advances a job one step from a fresh analysis report. It is a
// pure function: it returns the next job state and the delay to wait
// before the next query, and never regresses a terminal job.
func Poll(job domain.ScanJob, report ports.AnalysisReport, defaultDelay time.Duration) (domain.ScanJob, time.Duration) {
	if job.State.Terminal() {
		return job, 0
	}

	job.Attempts++

	switch report.Status {
	case "READY":
		job.State = domain.ScanReady
		job.Grade = worstGrade(report)
		return job, 0
	case "ERROR":
		job.State = domain.ScanError
		job.Message = report.StatusMessage
		return job, 0
	default:
		next, err := job.Advance(domain.ScanInProgress)
		if err == nil {
			job = next
		}
		delay := defaultDelay
		if eta := report.ETASeconds(); eta > 0 {
			delay = time.Duration(eta) * time.Second
		}
		job.LastDelay = delay
		return job, delay
	}
}

// worstGrade picks the lowest grade among the report's endpoints, so a
// host with one weak endpoint never passes on the strength of another.
// Grades outside the compliant set all rank equally below it.
func worstGrade(report ports.AnalysisReport) string {
	rank := func(g string) int {
		for i, c := range domain.CompliantGrades {
			if g == c {
				return i
			}
		}
		return len(domain.CompliantGrades)
	}

	grade := ""
	for _, e := range report.Endpoints {
		if e.Grade == "" {
			continue
		}
		if grade == "" || rank(e.Grade) > rank(grade) {
			grade = e.Grade
		}
	}
	return grade
}

// GradeAssertion builds the terminal grading assertion for one endpoint
// descriptor: compliant iff the job ended Ready with an accepted grade.
func GradeAssertion(d domain.EndpointDescriptor, job domain.ScanJob, basePath []string) domain.AssertionResult {
	path := strings.Join(append(append([]string{}, basePath...), string(d.Kind), CheckID), ".")
	result := domain.AssertionResult{CheckID: CheckID, Path: path}

	requirement := fmt.Sprintf("%s must be reachable and support TLS 1.2 - AV n. 1", d.Location)

	switch {
	case job.State == domain.ScanReady && domain.GradeCompliant(job.Grade):
		result.Outcome = domain.OutcomePass
		result.Message = fmt.Sprintf("%s (grade %s)", requirement, job.Grade)
	case job.State == domain.ScanReady:
		result.Outcome = domain.OutcomeFail
		result.Message = fmt.Sprintf("%s (grade %q is not one of [%s])",
			requirement, job.Grade, strings.Join(domain.CompliantGrades, ", "))
	default:
		result.Outcome = domain.OutcomeFail
		msg := job.Message
		if msg == "" {
			msg = "assessment ended in error"
		}
		result.Message = fmt.Sprintf("%s (%s)", requirement, msg)
	}
	return result
}
