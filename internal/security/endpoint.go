package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrUnsafeEndpoint is returned for outbound endpoints that point at
// loopback, private, link-local, or cloud-metadata addresses.
var ErrUnsafeEndpoint = errors.New("security: endpoint not allowed")

// Hostnames that reach cloud-internal surfaces regardless of resolution.
var blockedEndpointHosts = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"metadata.google":          {},
}

// ValidateEndpointURL checks an operator-configured outbound endpoint (the
// S3-compatible object store, for example) before the process starts pushing
// org assets at it. A mistyped or hostile value must not redirect uploads
// into the pod network or the cloud metadata service, so loopback, private,
// and link-local targets are rejected. Both the literal host and every
// DNS-resolved address are checked.
func ValidateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: malformed URL", ErrUnsafeEndpoint)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: scheme must be http or https", ErrUnsafeEndpoint)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrUnsafeEndpoint)
	}

	if _, blocked := blockedEndpointHosts[strings.ToLower(host)]; blocked {
		return fmt.Errorf("%w: host %q", ErrUnsafeEndpoint, host)
	}

	// IP literals need no resolution.
	if ip := net.ParseIP(host); ip != nil {
		return checkEndpointIP(ip)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve host %q", ErrUnsafeEndpoint, host)
	}
	for _, ip := range ips {
		if err := checkEndpointIP(ip); err != nil {
			return fmt.Errorf("host %q resolves to blocked address: %w", host, err)
		}
	}
	return nil
}

func checkEndpointIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("%w: loopback address", ErrUnsafeEndpoint)
	case ip.IsPrivate():
		return fmt.Errorf("%w: private address", ErrUnsafeEndpoint)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("%w: link-local address", ErrUnsafeEndpoint)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: unspecified address", ErrUnsafeEndpoint)
	}
	return nil
}
