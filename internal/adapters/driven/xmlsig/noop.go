package xmlsig

import (
	"context"

	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// NoopVerifier returns a fixed result. Useful for tests and for runs
// where signature verification is handled out of band.
type NoopVerifier struct {
	Result ports.VerifyResult
}

// NewNoopVerifier creates a verifier that always succeeds.
func NewNoopVerifier() *NoopVerifier {
	return &NoopVerifier{Result: ports.VerifyResult{OK: true}}
}

// Verify returns the configured result.
func (v *NoopVerifier) Verify(ctx context.Context, messageTag, roleTag string) ports.VerifyResult {
	return v.Result
}

var _ ports.SignatureVerifier = (*NoopVerifier)(nil)
