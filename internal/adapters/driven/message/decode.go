// Package message loads raw SAML documents, decodes their transport
// bindings, and produces the namespace-normalized trees the rule engine
// evaluates.
package message

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"regexp"

	"github.com/beevik/etree"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
	"github.com/gabrimonfa/spid-saml-check/internal/core/engine"
)

var whitespaceRE = regexp.MustCompile(`\s`)

// DecodeAuthnRequest parses a URL-encoded query string carrying a
// SAMLRequest and builds the normalized message tree. The presence of
// both Signature and SigAlg implies the Redirect binding, whose payload
// is raw-deflate compressed (no zlib header) before base64 encoding; the
// Post binding payload is base64-encoded XML only.
func DecodeAuthnRequest(raw []byte) (*engine.Message, error) {
	params, err := url.ParseQuery(whitespaceRE.ReplaceAllString(string(raw), ""))
	if err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("cannot parse request query string: %v", err))
	}

	encoded := params.Get("SAMLRequest")
	if encoded == "" {
		return nil, domain.ConfigError("SAMLRequest is missing")
	}

	binding := domain.BindingPost
	if params.Has("Signature") && params.Has("SigAlg") {
		binding = domain.BindingRedirect
	}

	xmlBytes, err := DecodePayload(encoded, binding)
	if err != nil {
		return nil, err
	}

	doc, err := ParseNormalized(xmlBytes)
	if err != nil {
		return nil, err
	}

	msg := &engine.Message{
		Kind:    domain.KindAuthnRequest,
		Binding: binding,
		Doc:     doc,
		Raw:     xmlBytes,
	}
	if params.Has("RelayState") {
		msg.RelayState = params.Get("RelayState")
		msg.RelayStatePresent = true
	}
	return msg, nil
}

// DecodePayload reverses the transport encoding of a SAMLRequest value:
// base64 for the Post binding, base64 over raw deflate for Redirect.
func DecodePayload(encoded string, binding domain.Binding) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.ValueError(fmt.Sprintf("SAMLRequest is not valid base64: %v", err))
	}
	if binding != domain.BindingRedirect {
		return compressed, nil
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	xmlBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.ValueError(fmt.Sprintf("SAMLRequest deflate payload is corrupt: %v", err))
	}
	return xmlBytes, nil
}

// EncodePayload applies the transport encoding for a binding. It is the
// inverse of DecodePayload and exists mainly for tests and fixtures.
func EncodePayload(xmlBytes []byte, binding domain.Binding) (string, error) {
	if binding != domain.BindingRedirect {
		return base64.StdEncoding.EncodeToString(xmlBytes), nil
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(xmlBytes); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeMetadata parses raw metadata XML into a normalized message tree.
func DecodeMetadata(raw []byte) (*engine.Message, error) {
	doc, err := ParseNormalized(raw)
	if err != nil {
		return nil, err
	}
	return &engine.Message{
		Kind:    domain.KindMetadata,
		Binding: domain.BindingNone,
		Doc:     doc,
		Raw:     raw,
	}, nil
}

// ParseNormalized parses XML bytes and strips every namespace, so rule
// queries match on local names only. The xml: prefix survives because
// checks need to see xml:lang.
func ParseNormalized(raw []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, domain.ValueError(fmt.Sprintf("cannot parse XML document: %v", err))
	}
	root := doc.Root()
	if root == nil {
		return nil, domain.ValueError("XML document has no root element")
	}
	stripNamespaces(root)
	return doc, nil
}

func stripNamespaces(el *etree.Element) {
	el.Space = ""

	kept := el.Attr[:0]
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		if a.Space != "" && a.Space != "xml" {
			a.Space = ""
		}
		kept = append(kept, a)
	}
	el.Attr = kept

	for _, child := range el.ChildElements() {
		stripNamespaces(child)
	}
}
