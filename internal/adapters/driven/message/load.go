package message

import (
	"fmt"
	"os"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/engine"
)

// LoadAuthnRequest reads and decodes an authentication request capture
// from disk. A missing path or unreadable file is a configuration error.
func LoadAuthnRequest(path string) (*engine.Message, error) {
	if path == "" {
		return nil, domain.ConfigError("AUTHN_REQUEST not set")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("cannot read authn request %s: %v", path, err))
	}
	return DecodeAuthnRequest(raw)
}

// LoadMetadata reads and parses SP metadata from disk.
func LoadMetadata(path string) (*engine.Message, error) {
	if path == "" {
		return nil, domain.ConfigError("SP_METADATA not set")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("cannot read metadata %s: %v", path, err))
	}
	return DecodeMetadata(raw)
}
