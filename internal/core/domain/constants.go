package domain

import "regexp"

// SAML protocol constants enforced by the Technical Rules.
const (
	SAMLVersion = "2.0"

	NameIDFormatUnspecified = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDFormatEntity      = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
	NameIDFormatTransient   = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"

	BindingHTTPPost     = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	BindingHTTPRedirect = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	BindingSOAP         = "urn:oasis:names:tc:SAML:2.0:bindings:SOAP"
)

// AllowedComparisons are the accepted RequestedAuthnContext Comparison values.
var AllowedComparisons = []string{"exact", "minimum", "better", "maximum"}

// AllowedBindings are the bindings accepted on AssertionConsumerService
// elements.
var AllowedBindings = []string{BindingHTTPPost, BindingHTTPRedirect}

// AllowedSingleLogoutBindings are the bindings accepted on
// SingleLogoutService elements.
var AllowedSingleLogoutBindings = []string{BindingHTTPPost, BindingHTTPRedirect, BindingSOAP}

// AllowedXMLDSigAlgorithms are the signature algorithms accepted on
// SignatureMethod elements. SHA-1 based algorithms are forbidden.
var AllowedXMLDSigAlgorithms = []string{
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha256",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha384",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha512",
}

// AllowedDigestAlgorithms are the digest algorithms accepted on
// DigestMethod elements.
var AllowedDigestAlgorithms = []string{
	"http://www.w3.org/2001/04/xmlenc#sha256",
	"http://www.w3.org/2001/04/xmldsig-more#sha384",
	"http://www.w3.org/2001/04/xmlenc#sha512",
}

// SPIDAttributes are the attribute names an SP may request.
var SPIDAttributes = []string{
	"spidCode",
	"name",
	"familyName",
	"placeOfBirth",
	"countyOfBirth",
	"dateOfBirth",
	"gender",
	"companyName",
	"registeredOffice",
	"fiscalNumber",
	"ivaCode",
	"idCard",
	"mobilePhone",
	"email",
	"address",
	"expirationDate",
	"digitalAddress",
}

// BooleanTrue are the accepted spellings of a true boolean attribute.
var BooleanTrue = []string{"true", "1"}

// SPIDLevelAll matches any valid SPID authentication level reference.
var SPIDLevelAll = regexp.MustCompile(`https://www\.spid\.gov\.it/SpidL[123]`)

// SPIDLevel23 matches SPID levels greater than 1, which require ForceAuthn.
var SPIDLevel23 = regexp.MustCompile(`https://www\.spid\.gov\.it/SpidL[23]`)

// Contains reports whether set contains v. Comparison is case-sensitive.
func Contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
