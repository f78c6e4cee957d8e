// Package engine evaluates ordered compliance checks against parsed,
// namespace-normalized SAML documents.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// Message is an immutable, namespace-free element tree together with the
// transport context it arrived in. It is owned exclusively by the
// validation run that parsed it.
type Message struct {
	Kind    domain.MessageKind
	Binding domain.Binding
	Doc     *etree.Document

	// Raw holds the decoded XML bytes the tree was parsed from, before
	// namespace stripping. Signature verification runs against these.
	Raw []byte

	// RelayState carries the RelayState transport parameter of an
	// AuthnRequest, when one was present in the query string.
	RelayState        string
	RelayStatePresent bool
}

// Check is one named compliance check together with its predicate logic.
// The body reports violations through the RunContext; it never returns a
// result directly.
type Check struct {
	domain.ComplianceCheck
	Run func(rc *RunContext)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger attaches a logger for check tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCertificateSink attaches a sink for certificates grubbed from
// Signature and KeyDescriptor elements.
func WithCertificateSink(s ports.CertificateSink) Option {
	return func(e *Engine) { e.certSink = s }
}

// Engine runs compliance checks. It holds no per-run state and is safe
// to invoke repeatedly and in parallel across independent message pairs.
type Engine struct {
	verifier ports.SignatureVerifier
	recorder ports.AssertionRecorder
	metrics  ports.MetricsRecorder
	certSink ports.CertificateSink
	logger   *zap.Logger
}

// New creates an Engine. verifier handles the delegated signature/schema
// check; recorder receives one entry per executed check.
func New(verifier ports.SignatureVerifier, recorder ports.AssertionRecorder, opts ...Option) *Engine {
	e := &Engine{verifier: verifier, recorder: recorder}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs checks against msg in their fixed order, cross-referencing
// counterpart where a check requires it. Neither tree is mutated. Each
// executed check yields exactly one AssertionResult; checks skipped due to
// an absent parent element yield none. A fatal failure stops the remaining
// checks for this message.
func (e *Engine) Evaluate(ctx context.Context, msg *Message, checks []Check, counterpart *Message, basePath []string) []domain.AssertionResult {
	results := make([]domain.AssertionResult, 0, len(checks))

	for i := range checks {
		chk := &checks[i]
		rc := &RunContext{
			ctx:         ctx,
			engine:      e,
			msg:         msg,
			counterpart: counterpart,
			check:       chk,
		}
		chk.Run(rc)

		if rc.skipped {
			if e.metrics != nil {
				e.metrics.RecordCheck(chk.ID, "skipped")
			}
			continue
		}

		res := rc.finish(basePath)
		results = append(results, res)

		if e.recorder != nil {
			// Fresh slice per entry: recorders may retain the path.
			path := append(append(make([]string, 0, len(basePath)+1), basePath...), chk.ID)
			e.recorder.Record(path, chk.Description, res)
		}
		if e.metrics != nil {
			e.metrics.RecordCheck(chk.ID, string(res.Outcome))
		}
		if e.logger != nil {
			e.logger.Debug("check executed",
				zap.String("check", chk.ID),
				zap.String("outcome", string(res.Outcome)))
		}

		if rc.fatal && res.Outcome == domain.OutcomeFail {
			if e.logger != nil {
				e.logger.Warn("fatal check failed, aborting remaining checks",
					zap.String("check", chk.ID),
					zap.String("kind", string(msg.Kind)))
			}
			break
		}
	}

	return results
}

// RunContext is the per-check execution context. Collectible violations
// accumulate in failures; at teardown they are concatenated into one
// combined failure so a single check yields at most one failure with
// full detail.
type RunContext struct {
	ctx         context.Context
	engine      *Engine
	msg         *Message
	counterpart *Message
	check       *Check

	failures []string
	skipped  bool
	fatal    bool
}

// Doc returns the message tree under validation.
func (rc *RunContext) Doc() *etree.Document {
	return rc.msg.Doc
}

// Counterpart returns the companion document tree, or nil when the check
// set was evaluated without one.
func (rc *RunContext) Counterpart() *etree.Document {
	if rc.counterpart == nil {
		return nil
	}
	return rc.counterpart.Doc
}

// Message returns the message under validation.
func (rc *RunContext) Message() *Message {
	return rc.msg
}

// Skip marks the check as skipped because a parent element it depends on
// is absent. No result is emitted for skipped checks.
func (rc *RunContext) Skip() {
	rc.skipped = true
}

// Fail records one collectible violation.
func (rc *RunContext) Fail(message string) {
	rc.failures = append(rc.failures, message)
}

// Failf records one collectible violation with formatting.
func (rc *RunContext) Failf(format string, args ...any) {
	rc.Fail(fmt.Sprintf(format, args...))
}

// AssertTrue records a violation unless cond holds. It returns cond so
// callers can guard follow-up assertions that would otherwise panic.
func (rc *RunContext) AssertTrue(cond bool, message string) bool {
	if !cond {
		rc.Fail(message)
	}
	return cond
}

// AssertEqual records a violation unless got equals want.
func (rc *RunContext) AssertEqual(got, want, message string) bool {
	return rc.AssertTrue(got == want, message)
}

// AssertNonEmpty records a violation unless v has a value.
func (rc *RunContext) AssertNonEmpty(v, message string) bool {
	return rc.AssertTrue(strings.TrimSpace(v) != "", message)
}

// AssertIn records a violation unless v is in the allowed set.
// Comparison is case-sensitive.
func (rc *RunContext) AssertIn(v string, allowed []string, message string) bool {
	return rc.AssertTrue(domain.Contains(allowed, v), message)
}

// AssertHTTPSURL records a violation unless v is a valid https URL.
func (rc *RunContext) AssertHTTPSURL(v, message string) bool {
	return rc.AssertTrue(domain.IsHTTPSURL(v), message)
}

// AssertUTC records a violation unless v matches the strict UTC
// timestamp pattern.
func (rc *RunContext) AssertUTC(v, message string) bool {
	return rc.AssertTrue(domain.IsUTCTimestamp(v), message)
}

// AssertIndex records a violation unless v parses as a non-negative
// integer.
func (rc *RunContext) AssertIndex(v, message string) bool {
	_, err := domain.ParseIndex(v)
	return rc.AssertTrue(err == nil, message)
}

// VerifySignature delegates to the signature verifier. On a non-zero
// result the check fails fatally with the verifier's captured output
// appended, and no further checks for this message run.
func (rc *RunContext) VerifySignature(messageTag, roleTag, message string) {
	res := rc.engine.verifier.Verify(rc.ctx, messageTag, roleTag)
	if res.OK {
		return
	}
	rc.fatal = true
	if out := strings.TrimSpace(res.Output); out != "" {
		rc.Fail(message + "\n" + out)
		return
	}
	rc.Fail(message)
}

// SaveCertificate forwards a grubbed certificate body to the configured
// sink. Extraction failures are logged, never reported as violations.
func (rc *RunContext) SaveCertificate(messageTag, use, certBody string) {
	if rc.engine.certSink == nil {
		return
	}
	if err := rc.engine.certSink.SaveCertificate(messageTag, use, certBody); err != nil && rc.engine.logger != nil {
		rc.engine.logger.Warn("certificate dump failed",
			zap.String("message", messageTag),
			zap.String("use", use),
			zap.Error(err))
	}
}

// finish produces the single AssertionResult for this check: a pass when
// no violations were collected, otherwise one combined failure preserving
// every individual message.
func (rc *RunContext) finish(basePath []string) domain.AssertionResult {
	path := strings.Join(append(append([]string{}, basePath...), rc.check.ID), ".")
	if len(rc.failures) == 0 {
		return domain.AssertionResult{
			CheckID: rc.check.ID,
			Outcome: domain.OutcomePass,
			Message: rc.check.Description,
			Path:    path,
		}
	}
	return domain.AssertionResult{
		CheckID: rc.check.ID,
		Outcome: domain.OutcomeFail,
		Message: strings.Join(rc.failures, "\n"),
		Path:    path,
	}
}
