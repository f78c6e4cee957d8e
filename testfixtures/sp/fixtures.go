// Package sp builds Service Provider documents for testing. It produces
// signed SP metadata and AuthnRequests that satisfy the full check sets,
// using the same goxmldsig library as the in-process verifier so tests
// can exercise the whole signature verification path.
package sp

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	dsig "github.com/russellhaering/goxmldsig"
)

// Well-known fixture locations. The AuthnRequest builder references the
// metadata's services by index, so the two documents cross-validate.
const (
	EntityID    = "https://sp.example.org"
	ACSLocation = "https://sp.example.org/acs"
	SLOLocation = "https://sp.example.org/slo"
	Destination = "https://idp.example.org/sso"
)

// Builder generates SP fixture documents signed with an auto-generated
// key and self-signed certificate.
type Builder struct {
	t           testing.TB
	privateKey  *rsa.PrivateKey
	certificate *x509.Certificate
}

// New creates a Builder with a fresh key and certificate.
func New(t testing.TB) *Builder {
	t.Helper()

	key, cert, err := generateSelfSignedCert()
	if err != nil {
		t.Fatalf("failed to generate fixture certificate: %v", err)
	}
	return &Builder{t: t, privateKey: key, certificate: cert}
}

// Certificate returns the signing certificate.
func (b *Builder) Certificate() *x509.Certificate {
	return b.certificate
}

// Sign adds an enveloped signature to the document's root element.
func (b *Builder) Sign(raw []byte) []byte {
	b.t.Helper()

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		b.t.Fatalf("failed to parse fixture XML: %v", err)
	}
	root := doc.Root()
	if root == nil {
		b.t.Fatal("fixture XML has no root element")
	}

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{b.certificate.Raw},
		PrivateKey:  b.privateKey,
	})
	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		b.t.Fatalf("failed to sign fixture XML: %v", err)
	}
	doc.SetRoot(signedRoot)

	signedBytes, err := doc.WriteToBytes()
	if err != nil {
		b.t.Fatalf("failed to serialize signed fixture XML: %v", err)
	}
	return signedBytes
}

// Metadata returns unsigned SP metadata that passes every metadata check
// except the signature ones.
func (b *Builder) Metadata() []byte {
	cert := base64.StdEncoding.EncodeToString(b.certificate.Raw)

	metadata := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" xmlns:ds="http://www.w3.org/2000/09/xmldsig#" ID="_fixture-sp-metadata" entityID="%[1]s">
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol" AuthnRequestsSigned="true" WantAssertionsSigned="true">
    <md:KeyDescriptor use="signing">
      <ds:KeyInfo><ds:X509Data><ds:X509Certificate>%[2]s</ds:X509Certificate></ds:X509Data></ds:KeyInfo>
    </md:KeyDescriptor>
    <md:KeyDescriptor use="encryption">
      <ds:KeyInfo><ds:X509Data><ds:X509Certificate>%[2]s</ds:X509Certificate></ds:X509Data></ds:KeyInfo>
    </md:KeyDescriptor>
    <md:SingleLogoutService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location="%[3]s"/>
    <md:AssertionConsumerService index="0" isDefault="true" Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location="%[4]s"/>
    <md:AttributeConsumingService index="0">
      <md:ServiceName xml:lang="it">Servizio di prova</md:ServiceName>
      <md:RequestedAttribute Name="spidCode"/>
      <md:RequestedAttribute Name="fiscalNumber"/>
      <md:RequestedAttribute Name="email"/>
    </md:AttributeConsumingService>
  </md:SPSSODescriptor>
  <md:Organization>
    <md:OrganizationName xml:lang="it">Ente di prova</md:OrganizationName>
    <md:OrganizationDisplayName xml:lang="it">Ente di prova</md:OrganizationDisplayName>
    <md:OrganizationURL xml:lang="it">%[1]s</md:OrganizationURL>
  </md:Organization>
</md:EntityDescriptor>`, EntityID, cert, SLOLocation, ACSLocation)

	return []byte(metadata)
}

// SignedMetadata returns SP metadata with a valid enveloped signature.
func (b *Builder) SignedMetadata() []byte {
	b.t.Helper()
	return b.Sign(b.Metadata())
}

// AuthnRequest returns an unsigned AuthnRequest that references the
// fixture metadata's services by index.
func (b *Builder) AuthnRequest() []byte {
	b.t.Helper()

	forceAuthn := true
	nameIDFormat := "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"

	req := saml.AuthnRequest{
		ID:           "_fixture-authn-request",
		Version:      "2.0",
		IssueInstant: time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC),
		Destination:  Destination,
		ForceAuthn:   &forceAuthn,

		AssertionConsumerServiceIndex: "0",

		Issuer: &saml.Issuer{
			Format:        "urn:oasis:names:tc:SAML:2.0:nameid-format:entity",
			NameQualifier: EntityID,
			Value:         EntityID,
		},
		NameIDPolicy: &saml.NameIDPolicy{
			Format: &nameIDFormat,
		},
		RequestedAuthnContext: &saml.RequestedAuthnContext{
			Comparison:           "minimum",
			AuthnContextClassRef: "https://www.spid.gov.it/SpidL2",
		},
	}

	root := req.Element()
	root.CreateAttr("AttributeConsumingServiceIndex", "0")
	doc := etree.NewDocument()
	doc.SetRoot(root)
	raw, err := doc.WriteToBytes()
	if err != nil {
		b.t.Fatalf("failed to serialize AuthnRequest fixture: %v", err)
	}
	return raw
}

// SignedAuthnRequest returns an AuthnRequest with a valid enveloped
// signature, as carried by the Post binding.
func (b *Builder) SignedAuthnRequest() []byte {
	b.t.Helper()
	return b.Sign(b.AuthnRequest())
}

// PostQuery wraps request XML in a Post-binding query string:
// base64-encoded SAMLRequest plus RelayState.
func PostQuery(t testing.TB, requestXML []byte, relayState string) []byte {
	t.Helper()

	params := url.Values{}
	params.Set("SAMLRequest", base64.StdEncoding.EncodeToString(requestXML))
	params.Set("RelayState", relayState)
	return []byte(params.Encode())
}

// generateSelfSignedCert creates a self-signed certificate for signing.
func generateSelfSignedCert() (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Test SP Signer",
			Organization: []string{"Test"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}
	return key, cert, nil
}
