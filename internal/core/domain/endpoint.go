package domain

import (
	"net/url"
	"strings"
)

// ServiceKind identifies the metadata service an endpoint belongs to.
type ServiceKind string

const (
	ServiceACS ServiceKind = "AssertionConsumerService"
	ServiceSLO ServiceKind = "SingleLogoutService"
)

// EndpointDescriptor is an endpoint advertised in SP metadata. It is
// read-only once extracted. Every descriptor yields exactly one terminal
// grading assertion, even when its host is shared with another descriptor.
type EndpointDescriptor struct {
	// Host is the network location of the endpoint URL. Empty if the
	// location could not be parsed.
	Host string

	// Location is the advertised URL, verbatim.
	Location string

	// Kind is the owning service element.
	Kind ServiceKind
}

// NewEndpointDescriptor builds a descriptor from a service Location URL.
// A location that does not parse yields a descriptor with an empty Host;
// the scan orchestrator turns those into failing assertions.
func NewEndpointDescriptor(location string, kind ServiceKind) EndpointDescriptor {
	d := EndpointDescriptor{Location: location, Kind: kind}
	u, err := url.Parse(strings.TrimSpace(location))
	if err == nil {
		d.Host = u.Host
	}
	return d
}
