package ports

import "context"

// VerifyResult is the structured outcome of a signature/schema
// verification. Output carries the verifier's diagnostic text and is
// appended verbatim to the failure message when OK is false.
type VerifyResult struct {
	OK     bool
	Output string
}

// SignatureVerifier checks the XML signature (and, depending on the
// implementation, the XSD validity) of a message. This is a port
// interface - implementations are adapters.
//
// messageTag identifies the message type (e.g. "authn", "metadata") and
// roleTag the issuing role (e.g. "sp"). Process-based implementations
// pass both tags to the external verifier; in-process implementations
// may ignore them.
type SignatureVerifier interface {
	Verify(ctx context.Context, messageTag, roleTag string) VerifyResult
}
