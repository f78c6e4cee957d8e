package xmlsig

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

var certWhitespaceRE = regexp.MustCompile(`\s`)

// DsigVerifier verifies an enveloped XML signature in-process with
// goxmldsig, trusting the certificate the document itself carries in its
// KeyInfo. This mirrors an insecure-mode xmlsec1 run: the point is
// signature integrity against the declared key, not chain validation.
// It does not validate against the SAML XSD.
type DsigVerifier struct {
	raw    []byte
	logger *zap.Logger
}

// NewDsigVerifier creates a verifier over the raw (still namespaced)
// document bytes.
func NewDsigVerifier(raw []byte, logger *zap.Logger) *DsigVerifier {
	return &DsigVerifier{raw: raw, logger: logger}
}

// Verify validates the document's enveloped signature. The message and
// role tags are ignored; the verifier was constructed for one document.
func (v *DsigVerifier) Verify(ctx context.Context, messageTag, roleTag string) ports.VerifyResult {
	if err := v.verify(); err != nil {
		if v.logger != nil {
			v.logger.Warn("in-process signature verification failed",
				zap.String("message", messageTag),
				zap.Error(err))
		}
		return ports.VerifyResult{OK: false, Output: err.Error()}
	}
	return ports.VerifyResult{OK: true}
}

func (v *DsigVerifier) verify() error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(v.raw); err != nil {
		return fmt.Errorf("cannot parse document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("document has no root element")
	}

	cert, err := embeddedCertificate(root)
	if err != nil {
		return err
	}

	validationCtx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	validationCtx.IdAttribute = "ID"

	if _, err := validationCtx.Validate(root); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// embeddedCertificate extracts the first X509Certificate under the
// document's Signature element, matching on local names so namespace
// prefixes do not matter.
func embeddedCertificate(root *etree.Element) (*x509.Certificate, error) {
	sig := findDescendant(root, "Signature")
	if sig == nil {
		return nil, fmt.Errorf("document carries no Signature element")
	}
	certEl := findDescendant(sig, "X509Certificate")
	if certEl == nil {
		return nil, fmt.Errorf("Signature carries no X509Certificate element")
	}

	der, err := base64.StdEncoding.DecodeString(certWhitespaceRE.ReplaceAllString(certEl.Text(), ""))
	if err != nil {
		return nil, fmt.Errorf("X509Certificate is not valid base64: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("X509Certificate does not parse: %w", err)
	}
	return cert, nil
}

func findDescendant(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findDescendant(child, tag); found != nil {
			return found
		}
	}
	return nil
}

var _ ports.SignatureVerifier = (*DsigVerifier)(nil)
