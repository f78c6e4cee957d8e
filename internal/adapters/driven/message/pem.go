package message

import (
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

var base64WhitespaceRE = regexp.MustCompile(`\s`)

// PEMDir writes certificates grubbed during rule evaluation to a data
// directory, one PEM file per (message, use) pair, for later analysis.
type PEMDir struct {
	dir string
}

// NewPEMDir creates a certificate sink rooted at dir.
func NewPEMDir(dir string) *PEMDir {
	return &PEMDir{dir: dir}
}

// SaveCertificate wraps the base64 certificate body from an
// X509Certificate element into a PEM block and writes it to
// <dir>/<messageTag>-<use>.pem.
func (p *PEMDir) SaveCertificate(messageTag, use, certBody string) error {
	der, err := base64.StdEncoding.DecodeString(base64WhitespaceRE.ReplaceAllString(certBody, ""))
	if err != nil {
		return fmt.Errorf("certificate body is not valid base64: %w", err)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%s-%s.pem", messageTag, use))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der})
}

var _ ports.CertificateSink = (*PEMDir)(nil)
