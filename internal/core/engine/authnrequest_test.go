//go:build unit

package engine_test

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"

	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/message"
	"github.com/gabrimonfa/spid-saml-check/internal/adapters/driven/xmlsig"
	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/engine"
	sp "github.com/gabrimonfa/spid-saml-check/testfixtures/sp"
)

// decodeFixtures builds the (request, metadata) message pair used across
// these tests: a signed Post-binding request and the metadata it
// references.
func decodeFixtures(t *testing.T, b *sp.Builder) (*engine.Message, *engine.Message) {
	t.Helper()

	md, err := message.DecodeMetadata(b.SignedMetadata())
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}
	req, err := message.DecodeAuthnRequest(sp.PostQuery(t, b.SignedAuthnRequest(), "c6ff1b"))
	if err != nil {
		t.Fatalf("DecodeAuthnRequest failed: %v", err)
	}
	return req, md
}

func evaluateRequest(req, md *engine.Message) []domain.AssertionResult {
	e := engine.New(xmlsig.NewNoopVerifier(), nil)
	return e.Evaluate(context.Background(), req, engine.AuthnRequestChecks(), md, []string{"sp", "authn_request_strict"})
}

func resultFor(t *testing.T, results []domain.AssertionResult, checkID string) domain.AssertionResult {
	t.Helper()
	for _, res := range results {
		if res.CheckID == checkID {
			return res
		}
	}
	t.Fatalf("no result for check %s", checkID)
	return domain.AssertionResult{}
}

// TestAuthnRequestChecks_ConformingRequestPasses verifies a fully
// conforming request produces no violation. Subject and Conditions are
// absent from the fixture, so their checks emit nothing.
func TestAuthnRequestChecks_ConformingRequestPasses(t *testing.T) {
	b := sp.New(t)
	req, md := decodeFixtures(t, b)

	results := evaluateRequest(req, md)

	if len(results) != 9 {
		t.Fatalf("got %d results, want 9 (2 of 11 checks skipped)", len(results))
	}
	for _, res := range results {
		if !res.Passed() {
			t.Errorf("check %s failed: %s", res.CheckID, res.Message)
		}
	}
}

// TestAuthnRequestChecks_WrongVersion verifies a non-2.0 Version is a
// violation of the authn_request check.
func TestAuthnRequestChecks_WrongVersion(t *testing.T) {
	b := sp.New(t)
	req, md := decodeFixtures(t, b)
	req.Doc.FindElement("//AuthnRequest").CreateAttr("Version", "1.1")

	res := resultFor(t, evaluateRequest(req, md), "authn_request")

	if res.Passed() {
		t.Fatal("authn_request check should fail")
	}
	if !strings.Contains(res.Message, "The Version attribute must be 2.0") {
		t.Errorf("unexpected failure message: %s", res.Message)
	}
}

// TestAuthnRequestChecks_UnknownACSIndex verifies the request's
// AssertionConsumerServiceIndex must match an index the metadata declares.
func TestAuthnRequestChecks_UnknownACSIndex(t *testing.T) {
	b := sp.New(t)
	req, md := decodeFixtures(t, b)
	req.Doc.FindElement("//AuthnRequest").CreateAttr("AssertionConsumerServiceIndex", "7")

	res := resultFor(t, evaluateRequest(req, md), "authn_request")

	if res.Passed() {
		t.Fatal("authn_request check should fail")
	}
	if !strings.Contains(res.Message, "equal to an AssertionConsumerService index") {
		t.Errorf("unexpected failure message: %s", res.Message)
	}
}

// TestAuthnRequestChecks_IssuerMismatch verifies the Issuer value must
// equal the metadata entityID.
func TestAuthnRequestChecks_IssuerMismatch(t *testing.T) {
	b := sp.New(t)
	req, md := decodeFixtures(t, b)
	req.Doc.FindElement("//AuthnRequest/Issuer").SetText("https://other.example.org")

	res := resultFor(t, evaluateRequest(req, md), "issuer")

	if res.Passed() {
		t.Fatal("issuer check should fail")
	}
	if !strings.Contains(res.Message, "equal to entityID") {
		t.Errorf("unexpected failure message: %s", res.Message)
	}
}

// TestAuthnRequestChecks_ScopingForbidden verifies a Scoping element is
// rejected.
func TestAuthnRequestChecks_ScopingForbidden(t *testing.T) {
	b := sp.New(t)
	req, md := decodeFixtures(t, b)
	req.Doc.FindElement("//AuthnRequest").CreateElement("Scoping")

	res := resultFor(t, evaluateRequest(req, md), "scoping")

	if res.Passed() {
		t.Fatal("scoping check should fail")
	}
}

// TestAuthnRequestChecks_MissingRelayState verifies the absence of the
// RelayState transport parameter is a violation.
func TestAuthnRequestChecks_MissingRelayState(t *testing.T) {
	b := sp.New(t)
	md, err := message.DecodeMetadata(b.SignedMetadata())
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}

	params := url.Values{}
	params.Set("SAMLRequest", base64.StdEncoding.EncodeToString(b.SignedAuthnRequest()))
	req, err := message.DecodeAuthnRequest([]byte(params.Encode()))
	if err != nil {
		t.Fatalf("DecodeAuthnRequest failed: %v", err)
	}

	res := resultFor(t, evaluateRequest(req, md), "relay_state")

	if res.Passed() {
		t.Fatal("relay_state check should fail")
	}
	if !strings.Contains(res.Message, "RelayState is missing") {
		t.Errorf("unexpected failure message: %s", res.Message)
	}
}

// TestAuthnRequestChecks_IntelligibleRelayState verifies a RelayState
// carrying a URL is a violation.
func TestAuthnRequestChecks_IntelligibleRelayState(t *testing.T) {
	b := sp.New(t)
	md, err := message.DecodeMetadata(b.SignedMetadata())
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}
	req, err := message.DecodeAuthnRequest(sp.PostQuery(t, b.SignedAuthnRequest(), "https://sp.example.org/return"))
	if err != nil {
		t.Fatalf("DecodeAuthnRequest failed: %v", err)
	}

	res := resultFor(t, evaluateRequest(req, md), "relay_state")

	if res.Passed() {
		t.Fatal("relay_state check should fail")
	}
}

// TestAuthnRequestChecks_RedirectSkipsSignatureElement verifies the
// Signature element check does not run for the Redirect binding, whose
// signature lives in the query string.
func TestAuthnRequestChecks_RedirectSkipsSignatureElement(t *testing.T) {
	b := sp.New(t)
	md, err := message.DecodeMetadata(b.SignedMetadata())
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}

	payload, err := message.EncodePayload(b.AuthnRequest(), domain.BindingRedirect)
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}
	params := url.Values{}
	params.Set("SAMLRequest", payload)
	params.Set("RelayState", "c6ff1b")
	params.Set("SigAlg", "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256")
	params.Set("Signature", base64.StdEncoding.EncodeToString([]byte("sig")))

	req, err := message.DecodeAuthnRequest([]byte(params.Encode()))
	if err != nil {
		t.Fatalf("DecodeAuthnRequest failed: %v", err)
	}
	if req.Binding != domain.BindingRedirect {
		t.Fatalf("binding = %s, want Redirect", req.Binding)
	}

	results := evaluateRequest(req, md)
	for _, res := range results {
		if res.CheckID == "signature" {
			t.Fatal("signature check should be skipped for the Redirect binding")
		}
		if !res.Passed() {
			t.Errorf("check %s failed: %s", res.CheckID, res.Message)
		}
	}
}

// TestAuthnRequestChecks_ForceAuthnRequiredAboveLevel1 verifies ForceAuthn
// is mandatory when the requested SPID level is greater than 1.
func TestAuthnRequestChecks_ForceAuthnRequiredAboveLevel1(t *testing.T) {
	b := sp.New(t)
	req, md := decodeFixtures(t, b)
	req.Doc.FindElement("//AuthnRequest").RemoveAttr("ForceAuthn")

	res := resultFor(t, evaluateRequest(req, md), "authn_request")

	if res.Passed() {
		t.Fatal("authn_request check should fail without ForceAuthn at SPID level 2")
	}
	if !strings.Contains(res.Message, "ForceAuthn attribute must be present") {
		t.Errorf("unexpected failure message: %s", res.Message)
	}
}
