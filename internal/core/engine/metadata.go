package engine

import (
	"fmt"
	"strings"

	"github.com/gabrimonfa/spid-saml-check/internal/core/domain"
)

// MetadataChecks returns the ordered check set for SP metadata. Metadata
// is validated standalone; no counterpart document is consulted.
func MetadataChecks() []Check {
	return []Check{
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "xmldsig",
				Description: "Verify the SP metadata signature",
				Citation:    "TR pag. 19",
				Severity:    domain.SeverityFatal,
			},
			Run: func(rc *RunContext) {
				rc.VerifySignature("metadata", "sp",
					"the metadata signature must be valid - TR pag. 19")
			},
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "entity_descriptor",
				Description: "Test the compliance of EntityDescriptor element",
				Citation:    "TR pag. 19",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkEntityDescriptor,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "signature",
				Description: "Test the compliance of Signature element",
				Citation:    "TR pag. 19",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkMetadataSignature,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "spsso_descriptor",
				Description: "Test the compliance of SPSSODescriptor element",
				Citation:    "TR pag. 20",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkSPSSODescriptor,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "key_descriptor",
				Description: "Test the compliance of KeyDescriptor element(s)",
				Citation:    "TR pag. 19",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkKeyDescriptor,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "single_logout_service",
				Description: "Test the compliance of SingleLogoutService element(s)",
				Citation:    "AV n. 3",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkSingleLogoutService,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "assertion_consumer_service",
				Description: "Test the compliance of AssertionConsumerService element(s)",
				Citation:    "TR pag. 20",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkAssertionConsumerService,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "attribute_consuming_service",
				Description: "Test the compliance of AttributeConsumingService element(s)",
				Citation:    "TR pag. 20",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkAttributeConsumingService,
		},
		{
			ComplianceCheck: domain.ComplianceCheck{
				ID:          "organization",
				Description: "Test the compliance of Organization element",
				Citation:    "TR pag. 20",
				Severity:    domain.SeverityCollectible,
			},
			Run: checkOrganization,
		},
	}
}

func checkEntityDescriptor(rc *RunContext) {
	eds := rc.Doc().FindElements("//EntityDescriptor")
	if !rc.AssertTrue(len(eds) == 1,
		"Only one EntityDescriptor element must be present - TR pag. 19") {
		return
	}
	attr := eds[0].SelectAttr("entityID")
	if rc.AssertTrue(attr != nil, "The entityID attribute must be present - TR pag. 19") {
		rc.AssertNonEmpty(attr.Value, "The entityID attribute must have a value - TR pag. 19")
	}
}

func checkMetadataSignature(rc *RunContext) {
	signatures := rc.Doc().FindElements("//EntityDescriptor/Signature")
	if !rc.AssertTrue(len(signatures) == 1,
		"The Signature element must be present - TR pag. 19") {
		return
	}
	checkSignatureAlgorithms(rc, signatures[0], "TR pag. 19")

	if cert := signatures[0].FindElement("./KeyInfo/X509Data/X509Certificate"); cert != nil {
		rc.SaveCertificate("sp", "signature", cert.Text())
	}
}

func checkSPSSODescriptor(rc *RunContext) {
	descriptors := rc.Doc().FindElements("//EntityDescriptor/SPSSODescriptor")
	if !rc.AssertTrue(len(descriptors) == 1,
		"Only one SPSSODescriptor element must be present") {
		return
	}

	for _, name := range []string{"protocolSupportEnumeration", "AuthnRequestsSigned"} {
		attr := descriptors[0].SelectAttr(name)
		if !rc.AssertTrue(attr != nil,
			fmt.Sprintf("The %s attribute must be present - TR pag. 20", name)) {
			continue
		}
		rc.AssertNonEmpty(attr.Value,
			fmt.Sprintf("The %s attribute must have a value - TR pag. 20", name))
		if name == "AuthnRequestsSigned" {
			rc.AssertEqual(strings.ToLower(attr.Value), "true",
				"The AuthnRequestsSigned attribute must be true - TR pag. 20")
		}
	}
}

func checkKeyDescriptor(rc *RunContext) {
	signing := rc.Doc().FindElements(
		"//EntityDescriptor/SPSSODescriptor/KeyDescriptor[@use='signing']")
	rc.AssertTrue(len(signing) >= 1,
		"At least one signing KeyDescriptor must be present - TR pag. 19")

	for _, kd := range signing {
		certs := kd.FindElements("./KeyInfo/X509Data/X509Certificate")
		rc.AssertTrue(len(certs) >= 1,
			"At least one signing x509 must be present - TR pag. 19")
		for _, cert := range certs {
			rc.SaveCertificate("sp", "signing", cert.Text())
		}
	}

	encryption := rc.Doc().FindElements(
		"//EntityDescriptor/SPSSODescriptor/KeyDescriptor[@use='encryption']")
	for _, kd := range encryption {
		certs := kd.FindElements("./KeyInfo/X509Data/X509Certificate")
		rc.AssertTrue(len(certs) >= 1,
			"At least one encryption x509 must be present - TR pag. 19")
		for _, cert := range certs {
			rc.SaveCertificate("sp", "encryption", cert.Text())
		}
	}
}

func checkSingleLogoutService(rc *RunContext) {
	slos := rc.Doc().FindElements("//EntityDescriptor/SPSSODescriptor/SingleLogoutService")
	rc.AssertTrue(len(slos) >= 1,
		"One or more SingleLogoutService elements must be present - AV n. 3")

	for _, slo := range slos {
		for _, name := range []string{"Binding", "Location"} {
			attr := slo.SelectAttr(name)
			if !rc.AssertTrue(attr != nil,
				fmt.Sprintf("The %s attribute in SingleLogoutService element must be present - AV n. 3", name)) {
				continue
			}
			rc.AssertNonEmpty(attr.Value,
				fmt.Sprintf("The %s attribute in SingleLogoutService element must have a value", name))

			switch name {
			case "Binding":
				rc.AssertIn(attr.Value, domain.AllowedSingleLogoutBindings,
					fmt.Sprintf("The Binding attribute in SingleLogoutService element must be one of [%s] - AV n. 3",
						strings.Join(domain.AllowedSingleLogoutBindings, ", ")))
			case "Location":
				rc.AssertHTTPSURL(attr.Value,
					"The Location attribute in SingleLogoutService element must be a valid URL - AV n. 1 and n. 3")
			}
		}
	}
}

func checkAssertionConsumerService(rc *RunContext) {
	acss := rc.Doc().FindElements("//EntityDescriptor/SPSSODescriptor/AssertionConsumerService")
	rc.AssertTrue(len(acss) >= 1,
		"At least one AssertionConsumerService must be present - TR pag. 20")

	for _, acs := range acss {
		for _, name := range []string{"index", "Binding", "Location"} {
			attr := acs.SelectAttr(name)
			if !rc.AssertTrue(attr != nil,
				fmt.Sprintf("The %s attribute must be present - TR pag. 20", name)) {
				continue
			}
			switch name {
			case "index":
				rc.AssertIndex(attr.Value, "The index attribute must be >= 0 - TR pag. 20")
			case "Binding":
				rc.AssertIn(attr.Value, domain.AllowedBindings,
					fmt.Sprintf("The Binding attribute must be one of [%s] - TR pag. 20",
						strings.Join(domain.AllowedBindings, ", ")))
			case "Location":
				rc.AssertHTTPSURL(attr.Value,
					"The Location attribute must be a valid HTTPS url - TR pag. 20 and AV n. 1")
			}
		}
	}

	defaults := rc.Doc().FindElements(
		"//EntityDescriptor/SPSSODescriptor/AssertionConsumerService[@isDefault='true']")
	rc.AssertTrue(len(defaults) == 1,
		"Only one default AssertionConsumerService must be present - TR pag. 20")

	defaultZero := rc.Doc().FindElements(
		"//EntityDescriptor/SPSSODescriptor/AssertionConsumerService[@index='0'][@isDefault='true']")
	rc.AssertTrue(len(defaultZero) == 1,
		"Must be present the default AssertionConsumerService with index = 0 - TR pag. 20")
}

func checkAttributeConsumingService(rc *RunContext) {
	acss := rc.Doc().FindElements("//EntityDescriptor/SPSSODescriptor/AttributeConsumingService")
	rc.AssertTrue(len(acss) >= 1,
		"One or more AttributeConsumingService elements must be present - TR pag. 20")

	for _, acs := range acss {
		index := acs.SelectAttr("index")
		if rc.AssertTrue(index != nil,
			"The index attribute in AttributeConsumingService element must be present") {
			rc.AssertIndex(index.Value,
				"The index attribute in AttributeConsumingService element must be >= 0 - TR pag. 20")
		}

		names := acs.FindElements("./ServiceName")
		rc.AssertTrue(len(names) > 0, "The ServiceName element must be present")
		for _, sn := range names {
			rc.AssertNonEmpty(sn.Text(), "The ServiceName element must have a value")
		}

		ras := acs.FindElements("./RequestedAttribute")
		rc.AssertTrue(len(ras) >= 1,
			"One or more RequestedAttribute elements must be present - TR pag. 20")

		seen := make(map[string]bool, len(ras))
		duplicated := false
		for _, ra := range ras {
			name := ra.SelectAttr("Name")
			if !rc.AssertTrue(name != nil,
				"The Name attribute in RequestedAttribute element must be present - TR pag. 20 and AV n. 6") {
				continue
			}
			rc.AssertIn(name.Value, domain.SPIDAttributes,
				fmt.Sprintf("The Name attribute in RequestedAttribute element must be one of [%s] - TR pag. 20 and AV n. 6",
					strings.Join(domain.SPIDAttributes, ", ")))
			if seen[name.Value] {
				duplicated = true
			}
			seen[name.Value] = true
		}
		rc.AssertTrue(!duplicated,
			"AttributeConsumingService must not contain duplicated RequestedAttribute - TR pag. 20")
	}
}

func checkOrganization(rc *RunContext) {
	orgs := rc.Doc().FindElements("//EntityDescriptor/Organization")
	if !rc.AssertTrue(len(orgs) <= 1,
		"Only one Organization element can be present - TR pag. 20") {
		return
	}
	if len(orgs) == 0 {
		return
	}

	for _, name := range []string{"OrganizationName", "OrganizationDisplayName", "OrganizationURL"} {
		elements := orgs[0].FindElements("./" + name)
		rc.AssertTrue(len(elements) > 0,
			fmt.Sprintf("One or more %s elements must be present - TR pag. 20", name))

		for _, el := range elements {
			rc.AssertTrue(el.SelectAttr("xml:lang") != nil,
				fmt.Sprintf("The lang attribute in %s element must be present - TR pag. 20", name))
			rc.AssertNonEmpty(el.Text(),
				fmt.Sprintf("The %s element must have a value - TR pag. 20", name))

			if name == "OrganizationURL" {
				rc.AssertTrue(domain.IsHTTPURL(domain.NormalizeOrganizationURL(el.Text())),
					"The OrganizationURL element must be a valid URL - TR pag. 20")
			}
		}
	}
}

// ExtractEndpoints collects the endpoint descriptors advertised by the
// metadata's AssertionConsumerService and SingleLogoutService elements.
// Extraction is a side channel for the scan orchestrator and never
// affects check outcomes.
func ExtractEndpoints(md *Message) []domain.EndpointDescriptor {
	var endpoints []domain.EndpointDescriptor

	for _, acs := range md.Doc.FindElements("//EntityDescriptor/SPSSODescriptor/AssertionConsumerService") {
		endpoints = append(endpoints,
			domain.NewEndpointDescriptor(acs.SelectAttrValue("Location", ""), domain.ServiceACS))
	}
	for _, slo := range md.Doc.FindElements("//EntityDescriptor/SPSSODescriptor/SingleLogoutService") {
		endpoints = append(endpoints,
			domain.NewEndpointDescriptor(slo.SelectAttrValue("Location", ""), domain.ServiceSLO))
	}

	return endpoints
}
