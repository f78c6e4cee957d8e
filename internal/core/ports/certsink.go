package ports

// CertificateSink receives certificates grubbed from Signature and
// KeyDescriptor elements during rule evaluation, for later analysis.
// Extraction never affects check outcomes. This is a port interface -
// implementations are adapters.
type CertificateSink interface {
	// SaveCertificate stores the base64 certificate body found under the
	// given message tag ("authn", "sp") and use ("signature", "signing",
	// "encryption").
	SaveCertificate(messageTag, use, certBody string) error
}
