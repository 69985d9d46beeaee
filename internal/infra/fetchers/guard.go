package fetchers

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// blockedIPRanges are never dialed: loopback, private networks, link-local
// (cloud metadata) and reserved space.
var blockedIPRanges = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"0.0.0.0/8",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var blockedHosts = []string{
	"localhost",
	"metadata",
	"metadata.google.internal",
	"metadata.google",
}

var blockedCIDRs = mustParseCIDRs(blockedIPRanges)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad CIDR %q: %v", cidr, err))
		}
		out = append(out, n)
	}
	return out
}

func isIPBlocked(ip net.IP) bool {
	for _, n := range blockedCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// urlGuard rejects URLs and connections that could reach internal services.
// With allowPrivate set every check passes except the scheme check.
type urlGuard struct {
	allowPrivate bool
}

// validate checks scheme and hostname. Addresses are checked at dial time so
// redirects and DNS rebinding are covered too.
func (g urlGuard) validate(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %w", ErrBlockedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q (only http/https allowed)", ErrBlockedURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrBlockedURL)
	}
	if g.allowPrivate {
		return u, nil
	}

	host := strings.ToLower(u.Hostname())
	for _, blocked := range blockedHosts {
		if host == blocked {
			return nil, fmt.Errorf("%w: blocked hostname %s", ErrBlockedURL, host)
		}
	}
	if ip := net.ParseIP(host); ip != nil && isIPBlocked(ip) {
		return nil, fmt.Errorf("%w: blocked IP address %s", ErrBlockedURL, ip)
	}
	return u, nil
}

// control is a net.Dialer Control hook that refuses blocked addresses after
// name resolution.
func (g urlGuard) control(_, address string, _ syscall.RawConn) error {
	if g.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: invalid address %q", ErrBlockedURL, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || isIPBlocked(ip) {
		return fmt.Errorf("%w: blocked IP address %s", ErrBlockedURL, host)
	}
	return nil
}
