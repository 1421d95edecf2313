// Package validation rejects unsafe product URLs and malformed receipt data
// before they reach the scrapers or the datastore.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"fairval/apperrors"
)

// MaxURLLength is the longest product URL accepted.
const MaxURLLength = 2048

var blockedHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::":        true,
	"::1":       true,
}

// ValidateProductURL parses raw and rejects URLs that are not plain http(s)
// links to public hosts.
func ValidateProductURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", apperrors.ErrValidation)
	}
	if len(raw) > MaxURLLength {
		return nil, fmt.Errorf("%w: url is too long (max %d characters)", apperrors.ErrValidation, MaxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", apperrors.ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https urls are allowed", apperrors.ErrValidation)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: url has no host", apperrors.ErrValidation)
	}
	if isBlockedHost(host) {
		return nil, fmt.Errorf("%w: private or local addresses are not allowed", apperrors.ErrValidation)
	}

	return u, nil
}

func isBlockedHost(host string) bool {
	if blockedHosts[host] || strings.HasSuffix(host, ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return IsBlockedIP(ip)
}

// IsBlockedIP reports whether ip is a loopback, private, link-local or
// unspecified address.
func IsBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// CheckDialAddress is a net.Dialer Control hook. It runs after DNS
// resolution, so hostnames that resolve to blocked addresses are refused too.
func CheckDialAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: invalid address %q", apperrors.ErrValidation, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || IsBlockedIP(ip) {
		return fmt.Errorf("%w: connection to %s is not allowed", apperrors.ErrValidation, host)
	}
	return nil
}
