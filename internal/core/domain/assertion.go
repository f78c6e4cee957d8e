package domain

// MessageKind identifies the kind of SAML document under validation.
type MessageKind string

const (
	KindAuthnRequest MessageKind = "AuthnRequest"
	KindMetadata     MessageKind = "Metadata"
)

// Binding identifies the transport encoding that carried a protocol message.
type Binding string

const (
	BindingRedirect Binding = "Redirect"
	BindingPost     Binding = "Post"
	BindingNone     Binding = "None"
)

// Severity classifies how a check failure propagates.
//
// Collectible failures accumulate across a check and surface as one
// combined failure at check teardown. Fatal failures short-circuit the
// remaining checks for the current message.
type Severity string

const (
	SeverityCollectible Severity = "collectible"
	SeverityFatal       Severity = "fatal"
)

// Outcome is the result of a single check execution.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// ComplianceCheck describes one named compliance check. Checks are
// immutable, defined once per message kind, and run in a fixed order.
type ComplianceCheck struct {
	// ID is the stable check identifier (e.g. "authn_request").
	ID string

	// Description is a human-readable summary of what the check enforces.
	Description string

	// Citation references the Technical Rules or Regulatory Notice clause
	// the check enforces (e.g. "TR pag. 8").
	Citation string

	// Severity is Collectible for ordinary checks and Fatal for the
	// delegated signature/schema validity check.
	Severity Severity
}

// AssertionResult is the outcome of exactly one compliance check executed
// against one (message, optional counterpart) pair.
type AssertionResult struct {
	CheckID string  `json:"check"`
	Outcome Outcome `json:"result"`
	Message string  `json:"message"`
	Path    string  `json:"path,omitempty"`
}

// Passed reports whether the assertion passed.
func (r AssertionResult) Passed() bool {
	return r.Outcome == OutcomePass
}
