// Package runner wires a validation run: it loads the input documents,
// drives the rule engine and the scan orchestrator against one explicit
// recorder per document, and writes the report artifacts.
package runner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/message"
	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/report"
	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/xmlsig"
	"github.com/gabrimonfa/spid-saml-check/internal/config"
	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/engine"
	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
	"github.com/gabrimonfa/spid-saml-check/internal/core/scan"
)

// Report artifact names, one per validated document.
const (
	AuthnRequestReportName = "sp-authn-request-strict.json"
	MetadataReportName     = "sp-metadata-strict.json"
)

// VerifierFactory builds the signature verifier for one loaded document.
// Each document is verified against its own bytes; a verifier built for
// the metadata must never vouch for the request.
type VerifierFactory func(msg *engine.Message) ports.SignatureVerifier

// StaticVerifier uses the same verifier for every document. Suited to
// external process verifiers, which locate their input from the message
// and role tags.
func StaticVerifier(v ports.SignatureVerifier) VerifierFactory {
	return func(*engine.Message) ports.SignatureVerifier { return v }
}

// InProcessVerifier verifies each document's enveloped signature against
// the certificate it embeds. Redirect-binding requests carry their
// signature in the query string rather than the XML, out of reach of an
// enveloped-signature check, so they pass through unverified.
func InProcessVerifier(logger *zap.Logger) VerifierFactory {
	return func(msg *engine.Message) ports.SignatureVerifier {
		if msg.Binding == domain.BindingRedirect {
			if logger != nil {
				logger.Debug("redirect binding: enveloped signature check not applicable")
			}
			return xmlsig.NewNoopVerifier()
		}
		return xmlsig.NewDsigVerifier(msg.Raw, logger)
	}
}

// Runner executes validation runs with a fixed set of collaborators.
type Runner struct {
	cfg         config.Config
	verifierFor VerifierFactory
	analyzer    ports.TLSAnalyzer
	cache       ports.GradeCache
	metrics     ports.MetricsRecorder
	logger      *zap.Logger
}

// New creates a Runner. cache and metrics may be nil.
func New(cfg config.Config, verifierFor VerifierFactory, analyzer ports.TLSAnalyzer, cache ports.GradeCache, metrics ports.MetricsRecorder, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:         cfg,
		verifierFor: verifierFor,
		analyzer:    analyzer,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
	}
}

// ValidateAuthnRequest checks the captured authentication request
// against the Technical Rules, cross-referencing the SP metadata, and
// writes the request report. The returned error reports configuration
// problems only; check failures live in the report.
func (r *Runner) ValidateAuthnRequest(ctx context.Context) error {
	req, err := message.LoadAuthnRequest(r.cfg.AuthnRequestPath)
	if err != nil {
		return err
	}
	md, err := message.LoadMetadata(r.cfg.MetadataPath)
	if err != nil {
		return err
	}

	rec := report.NewRecorder()
	eng := r.newEngine(rec, req)

	basePath := []string{"sp", "authn_request_strict"}
	results := eng.Evaluate(ctx, req, engine.AuthnRequestChecks(), md, basePath)
	r.logOutcome("authn request validated", results)

	return report.Write(r.cfg.DataDir, AuthnRequestReportName, rec)
}

// ValidateMetadata checks the SP metadata against the Technical Rules,
// grades the TLS configuration of the advertised endpoints, and writes
// the metadata report.
func (r *Runner) ValidateMetadata(ctx context.Context) error {
	md, err := message.LoadMetadata(r.cfg.MetadataPath)
	if err != nil {
		return err
	}

	rec := report.NewRecorder()
	eng := r.newEngine(rec, md)

	basePath := []string{"sp", "metadata_strict"}
	results := eng.Evaluate(ctx, md, engine.MetadataChecks(), nil, basePath)
	r.logOutcome("metadata validated", results)

	endpoints := engine.ExtractEndpoints(md)
	orch := scan.New(r.analyzer, scan.Config{
		Parallelism:     r.cfg.SSLLabs.Parallelism,
		ForceNew:        r.cfg.SSLLabs.ForceNew,
		Skip:            r.cfg.SSLLabs.Skip,
		MaxPollAttempts: r.cfg.SSLLabs.MaxPollAttempts,
	}, r.scanOptions()...)

	if err := orch.Assess(ctx, endpoints, rec, basePath); err != nil {
		return err
	}

	return report.Write(r.cfg.DataDir, MetadataReportName, rec)
}

func (r *Runner) newEngine(rec ports.AssertionRecorder, msg *engine.Message) *engine.Engine {
	opts := []engine.Option{
		engine.WithCertificateSink(message.NewPEMDir(r.cfg.DataDir)),
	}
	if r.logger != nil {
		opts = append(opts, engine.WithLogger(r.logger))
	}
	if r.metrics != nil {
		opts = append(opts, engine.WithMetrics(r.metrics))
	}
	return engine.New(r.verifierFor(msg), rec, opts...)
}

func (r *Runner) scanOptions() []scan.Option {
	var opts []scan.Option
	if r.logger != nil {
		opts = append(opts, scan.WithLogger(r.logger))
	}
	if r.cache != nil {
		opts = append(opts, scan.WithGradeCache(r.cache))
	}
	if r.metrics != nil {
		opts = append(opts, scan.WithMetrics(r.metrics))
	}
	return opts
}

func (r *Runner) logOutcome(msg string, results []domain.AssertionResult) {
	if r.logger == nil {
		return
	}
	failed := 0
	for _, res := range results {
		if !res.Passed() {
			failed++
		}
	}
	r.logger.Info(msg,
		zap.Int("checks", len(results)),
		zap.Int("failed", failed))
}

// IsConfigError reports whether err is a configuration error, which
// aborts validation of the affected document.
func IsConfigError(err error) bool {
	var appErr *domain.AppError
	return errors.As(err, &appErr) && appErr.Code == domain.ErrCodeConfigMissing
}
