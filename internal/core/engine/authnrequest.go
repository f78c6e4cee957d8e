package engine

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
)

// AuthnRequestChecks returns the ordered check set for an AuthnRequest.
// The counterpart document must be the SP metadata: index and location
// attributes on the request are validated against the services the
// metadata declares.
func AuthnRequestChecks() []Check {
	return []Check{
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "xsd_and_xmldsig",
				Description: "Test if the XSD validates and if the signature is valid",
				Citation:    "TR pag. 10",
				Severity:    domain.SeverityFatal,
			},
			Run: func(rc *RunContext) {
				rc.VerifySignature("authn", "sp",
					"The AuthnRequest must validate against XSD and must have a valid signature")
			},
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "authn_request",
				Description: "Test the compliance of AuthnRequest element",
				Citation:    "TR pag. 8",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkAuthnRequestElement,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "subject",
				Description: "Test the compliance of Subject element",
				Citation:    "TR pag. 9",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkSubject,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "issuer",
				Description: "Test the compliance of Issuer element",
				Citation:    "TR pag. 9",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkIssuer,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "name_id_policy",
				Description: "Test the compliance of NameIDPolicy element",
				Citation:    "TR pag. 9",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkNameIDPolicy,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "conditions",
				Description: "Test the compliance of Conditions element",
				Citation:    "TR pag. 9",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkConditions,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "requested_authn_context",
				Description: "Test the compliance of RequestedAuthnContext element",
				Citation:    "TR pag. 9-10",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkRequestedAuthnContext,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "signature",
				Description: "Test the compliance of Signature element",
				Citation:    "TR pag. 10",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkRequestSignature,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "relay_state",
				Description: "Test the compliance of RelayState parameter",
				Citation:    "TR pag. 14-15",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkRelayState,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "scoping",
				Description: "Test the compliance of Scoping element",
				Citation:    "AV n. 5",
				Severity:    domain.SeverityCollectible,
			},
			Run: func(rc *RunContext) {
				e := rc.Doc().FindElements("//AuthnRequest/Scoping")
				rc.AssertTrue(len(e) == 0,
					"The Scoping element must not be present - AV n. 5")
			},
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "requester_id",
				Description: "Test the compliance of RequesterID element",
				Citation:    "AV n. 5",
				Severity:    domain.SeverityCollectible,
			},
			Run: func(rc *RunContext) {
				e := rc.Doc().FindElements("//AuthnRequest/RequesterID")
				rc.AssertTrue(len(e) == 0,
					"The RequesterID element must not be present - AV n. 5")
			},
		},
	}
}

func checkAuthnRequestElement(rc *RunContext) {
	reqs := rc.Doc().FindElements("//AuthnRequest")
	if !rc.AssertTrue(len(reqs) == 1, "One AuthnRequest element must be present") {
		return
	}
	req := reqs[0]

	for _, name := range []string{"ID", "Version", "IssueInstant", "Destination"} {
		attr := req.SelectAttr(name)
		if !rc.AssertTrue(attr != nil,
			fmt.Sprintf("The %s attribute must be present - TR pag. 8", name)) {
			continue
		}
		value := attr.Value

		switch name {
		case "ID":
			rc.AssertNonEmpty(value, "The ID attribute must have a value - TR pag. 8")
		case "Version":
			rc.AssertEqual(value, domain.SAMLVersion,
				fmt.Sprintf("The Version attribute must be %s - TR pag. 8", domain.SAMLVersion))
		case "IssueInstant":
			rc.AssertNonEmpty(value, "The IssueInstant attribute must have a value - TR pag. 8")
			rc.AssertUTC(value, "The IssueInstant attribute must be a valid UTC string - TR pag. 8")
		case "Destination":
			rc.AssertNonEmpty(value, "The Destination attribute must have a value - TR pag. 8")
			rc.AssertHTTPSURL(value, "The Destination attribute must be a valid HTTPS url - TR pag. 8")
		}
	}

	rc.AssertTrue(req.SelectAttr("IsPassive") == nil,
		"The IsPassive attribute must not be present - TR pag. 9")

	// ForceAuthn is mandatory for SPID levels above 1.
	if acr := rc.Doc().FindElement("//RequestedAuthnContext/AuthnContextClassRef"); acr != nil &&
		domain.SPIDLevel23.MatchString(acr.Text()) {
		fa := req.SelectAttr("ForceAuthn")
		if rc.AssertTrue(fa != nil,
			"The ForceAuthn attribute must be present if SPID level > 1 - TR pag. 8") {
			rc.AssertIn(strings.ToLower(fa.Value), domain.BooleanTrue,
				"The ForceAuthn attribute must be true or 1 - TR pag. 8")
		}
	}

	checkACSReference(rc, req)
	checkAttributeIndexReference(rc, req)
}

// checkACSReference validates how the request points at an
// AssertionConsumerService: either by index, which must match an index
// declared in the metadata, or by URL plus ProtocolBinding.
func checkACSReference(rc *RunContext, req *etree.Element) {
	acss := rc.Counterpart().FindElements("//EntityDescriptor/SPSSODescriptor/AssertionConsumerService")

	if attr := req.SelectAttr("AssertionConsumerServiceIndex"); attr != nil {
		var indexes []string
		for _, acs := range acss {
			indexes = append(indexes, acs.SelectAttrValue("index", ""))
		}

		value := attr.Value
		rc.AssertNonEmpty(value,
			"The AssertionConsumerServiceIndex attribute must have a value - TR pag. 8")
		rc.AssertIndex(value,
			"The AssertionConsumerServiceIndex attribute must be >= 0 - TR pag. 8 and pag. 20")
		rc.AssertIn(value, indexes,
			"The AssertionConsumerServiceIndex attribute must be equal to an AssertionConsumerService index - TR pag. 8")
		return
	}

	var locations []string
	for _, acs := range acss {
		locations = append(locations, acs.SelectAttrValue("Location", ""))
	}

	for _, name := range []string{"AssertionConsumerServiceURL", "ProtocolBinding"} {
		attr := req.SelectAttr(name)
		if !rc.AssertTrue(attr != nil,
			fmt.Sprintf("The %s attribute must be present - TR pag. 8", name)) {
			continue
		}
		value := attr.Value
		rc.AssertNonEmpty(value,
			fmt.Sprintf("The %s attribute must have a value - TR pag. 8", name))

		switch name {
		case "AssertionConsumerServiceURL":
			rc.AssertHTTPSURL(value,
				"The AssertionConsumerServiceURL attribute must be a valid HTTPS url - TR pag. 8 and pag. 16")
			rc.AssertIn(value, locations,
				"The AssertionConsumerServiceURL attribute must be equal to an AssertionConsumerService Location - TR pag. 8")
		case "ProtocolBinding":
			rc.AssertEqual(value, domain.BindingHTTPPost,
				fmt.Sprintf("The ProtocolBinding attribute must be %s - TR pag. 8", domain.BindingHTTPPost))
		}
	}
}

// checkAttributeIndexReference validates the optional
// AttributeConsumingServiceIndex against the metadata's declared set.
func checkAttributeIndexReference(rc *RunContext, req *etree.Element) {
	attr := req.SelectAttr("AttributeConsumingServiceIndex")
	if attr == nil {
		return
	}

	var indexes []string
	for _, acs := range rc.Counterpart().FindElements("//EntityDescriptor/SPSSODescriptor/AttributeConsumingService") {
		indexes = append(indexes, acs.SelectAttrValue("index", ""))
	}

	value := attr.Value
	rc.AssertNonEmpty(value,
		"The AttributeConsumingServiceIndex attribute must have a value - TR pag. 8")
	rc.AssertIndex(value,
		"The AttributeConsumingServiceIndex attribute must be >= 0 - TR pag. 8 and pag. 20")
	rc.AssertIn(value, indexes,
		"The AttributeConsumingServiceIndex attribute must be equal to an AttributeConsumingService index - TR pag. 8")
}

func checkSubject(rc *RunContext) {
	subjects := rc.Doc().FindElements("//AuthnRequest/Subject")
	if len(subjects) == 0 {
		rc.Skip()
		return
	}
	if !rc.AssertTrue(len(subjects) == 1,
		"Only one Subject element can be present - TR pag. 9") {
		return
	}

	nameIDs := subjects[0].FindElements("./NameID")
	if !rc.AssertTrue(len(nameIDs) == 1,
		"One NameID element in Subject element must be present - TR pag. 9") {
		return
	}
	nameID := nameIDs[0]

	for _, name := range []string{"Format", "NameQualifier"} {
		attr := nameID.SelectAttr(name)
		if !rc.AssertTrue(attr != nil,
			fmt.Sprintf("The %s attribute must be present - TR pag. 9", name)) {
			continue
		}
		rc.AssertNonEmpty(attr.Value,
			fmt.Sprintf("The %s attribute must have a value - TR pag. 9", name))
		if name == "Format" {
			rc.AssertEqual(attr.Value, domain.NameIDFormatUnspecified,
				fmt.Sprintf("The Format attribute must be %s - TR pag. 9", domain.NameIDFormatUnspecified))
		}
	}
}

func checkIssuer(rc *RunContext) {
	issuers := rc.Doc().FindElements("//AuthnRequest/Issuer")
	if !rc.AssertTrue(len(issuers) == 1, "One Issuer element must be present - TR pag. 9") {
		return
	}
	issuer := issuers[0]

	rc.AssertNonEmpty(issuer.Text(), "The Issuer element must have a value - TR pag. 9")

	if ed := rc.Counterpart().FindElement("//EntityDescriptor"); ed != nil {
		rc.AssertEqual(issuer.Text(), ed.SelectAttrValue("entityID", ""),
			"The Issuer's value must be equal to entityID - TR pag. 9")
	}

	for _, name := range []string{"Format", "NameQualifier"} {
		attr := issuer.SelectAttr(name)
		if !rc.AssertTrue(attr != nil,
			fmt.Sprintf("The %s attribute must be present - TR pag. 9", name)) {
			continue
		}
		rc.AssertNonEmpty(attr.Value,
			fmt.Sprintf("The %s attribute must have a value - TR pag. 9", name))
		if name == "Format" {
			rc.AssertEqual(attr.Value, domain.NameIDFormatEntity,
				fmt.Sprintf("The Format attribute must be %s - TR pag. 9", domain.NameIDFormatEntity))
		}
	}
}

func checkNameIDPolicy(rc *RunContext) {
	policies := rc.Doc().FindElements("//AuthnRequest/NameIDPolicy")
	if !rc.AssertTrue(len(policies) == 1,
		"One NameIDPolicy element must be present - TR pag. 9") {
		return
	}
	policy := policies[0]

	rc.AssertTrue(policy.SelectAttr("AllowCreate") == nil,
		"The AllowCreate attribute must not be present - AV n. 5")

	format := policy.SelectAttr("Format")
	if !rc.AssertTrue(format != nil, "The Format attribute must be present - TR pag. 9") {
		return
	}
	rc.AssertNonEmpty(format.Value, "The Format attribute must have a value - TR pag. 9")
	rc.AssertEqual(format.Value, domain.NameIDFormatTransient,
		fmt.Sprintf("The Format attribute must be %s - TR pag. 9", domain.NameIDFormatTransient))
}

func checkConditions(rc *RunContext) {
	conditions := rc.Doc().FindElements("//AuthnRequest/Conditions")
	if len(conditions) == 0 {
		rc.Skip()
		return
	}
	if !rc.AssertTrue(len(conditions) == 1,
		"Only one Conditions element is allowed - TR pag. 9") {
		return
	}

	for _, name := range []string{"NotBefore", "NotOnOrAfter"} {
		attr := conditions[0].SelectAttr(name)
		if !rc.AssertTrue(attr != nil,
			fmt.Sprintf("The %s attribute must be present - TR pag. 9", name)) {
			continue
		}
		rc.AssertNonEmpty(attr.Value,
			fmt.Sprintf("The %s attribute must have a value - TR pag. 9", name))
		rc.AssertUTC(attr.Value,
			fmt.Sprintf("The %s attribute must have a valid UTC string - TR pag. 9", name))
	}
}

func checkRequestedAuthnContext(rc *RunContext) {
	racs := rc.Doc().FindElements("//AuthnRequest/RequestedAuthnContext")
	if !rc.AssertTrue(len(racs) == 1,
		"Only one RequestedAuthnContext element must be present - TR pag. 9") {
		return
	}
	rac := racs[0]

	comparison := rac.SelectAttr("Comparison")
	if rc.AssertTrue(comparison != nil, "The Comparison attribute must be present - TR pag. 10") {
		rc.AssertNonEmpty(comparison.Value,
			"The Comparison attribute must have a value - TR pag. 10")
		rc.AssertIn(comparison.Value, domain.AllowedComparisons,
			fmt.Sprintf("The Comparison attribute must be one of [%s] - TR pag. 10",
				strings.Join(domain.AllowedComparisons, ", ")))
	}

	acrs := rac.FindElements("./AuthnContextClassRef")
	if !rc.AssertTrue(len(acrs) == 1,
		"Only one AuthnContextClassRef element must be present - TR pag. 9") {
		return
	}
	rc.AssertNonEmpty(acrs[0].Text(),
		"The AuthnContextClassRef element must have a value - TR pag. 9")
	rc.AssertTrue(domain.SPIDLevelAll.MatchString(acrs[0].Text()),
		"The AuthnContextClassRef element must have a valid SPID level - TR pag. 9 and AV n. 5")
}

// checkRequestSignature applies only to the Post binding; a Redirect
// binding carries its signature in the query string and is covered by the
// delegated verifier, so the check is skipped there.
func checkRequestSignature(rc *RunContext) {
	if rc.Message().Binding == domain.BindingRedirect {
		rc.Skip()
		return
	}

	signatures := rc.Doc().FindElements("//AuthnRequest/Signature")
	if !rc.AssertTrue(len(signatures) == 1,
		"The Signature element must be present - TR pag. 10") {
		return
	}
	checkSignatureAlgorithms(rc, signatures[0], "TR pag. 10")

	if cert := signatures[0].FindElement("./KeyInfo/X509Data/X509Certificate"); cert != nil {
		rc.SaveCertificate("authn", "signature", cert.Text())
	}
}

func checkRelayState(rc *RunContext) {
	msg := rc.Message()
	if !msg.RelayStatePresent {
		rc.Fail("RelayState is missing - TR pag. 14 or pag. 15")
		return
	}
	rc.AssertTrue(!strings.Contains(msg.RelayState, "http"),
		"RelayState must not be immediately intelligible - TR pag. 14 or pag. 15")
}

// checkSignatureAlgorithms validates SignatureMethod and DigestMethod
// of a Signature element against the allowed algorithm sets. Shared by
// the AuthnRequest and Metadata check sets.
func checkSignatureAlgorithms(rc *RunContext, sig *etree.Element, citation string) {
	methods := sig.FindElements("./SignedInfo/SignatureMethod")
	if rc.AssertTrue(len(methods) == 1,
		fmt.Sprintf("The SignatureMethod element must be present - %s", citation)) {
		alg := methods[0].SelectAttr("Algorithm")
		if rc.AssertTrue(alg != nil,
			fmt.Sprintf("The Algorithm attribute must be present in SignatureMethod element - %s", citation)) {
			rc.AssertIn(alg.Value, domain.AllowedXMLDSigAlgorithms,
				fmt.Sprintf("The signature algorithm must be one of [%s] - %s",
					strings.Join(domain.AllowedXMLDSigAlgorithms, ", "), citation))
		}
	}

	digests := sig.FindElements("./SignedInfo/Reference/DigestMethod")
	if rc.AssertTrue(len(digests) == 1,
		"The DigestMethod element must be present") {
		alg := digests[0].SelectAttr("Algorithm")
		if rc.AssertTrue(alg != nil,
			fmt.Sprintf("The Algorithm attribute must be present in DigestMethod element - %s", citation)) {
			rc.AssertIn(alg.Value, domain.AllowedDigestAlgorithms,
				fmt.Sprintf("The digest algorithm must be one of [%s] - %s",
					strings.Join(domain.AllowedDigestAlgorithms, ", "), citation))
		}
	}
}
