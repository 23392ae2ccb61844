// Package ufnet contains utilities for domain and hostname parsing/validation.
package ufnet

import (
	"net/netip"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// ExtractHostname quickly retrieves hostname from the given URL.
//
// NOTE: ExtractHostname is an optimized, best-effort function to retrieve a
// hostname from a URL-like string.  The result is not guaranteed to be correct
// for some edge cases, which include non-hierarchical URLs and IPv6 hostnames.
func ExtractHostname(url string) (hostname string) {
	start, end := HostnameBounds(url)
	if start < 0 {
		return ""
	}

	return url[start:end]
}

// HostnameBounds returns the boundaries of the hostname inside url so that
// url[start:end] is the hostname.  start is -1 if there is no hostname.
func HostnameBounds(url string) (start, end int) {
	firstIdx := strings.Index(url, "//")
	if firstIdx == -1 {
		// This is a non-hierarchical structured URL (e.g. stun: or turn:)
		// https://tools.ietf.org/html/rfc4395#section-2.2
		// https://datatracker.ietf.org/doc/html/rfc7064#appendix-B
		firstIdx = strings.Index(url, ":")
		if firstIdx == -1 {
			return -1, -1
		}

		firstIdx = firstIdx + 1
	} else {
		firstIdx = firstIdx + 2
	}

	nextIdx := strings.IndexAny(url[firstIdx:], "/:?")
	if nextIdx == -1 {
		nextIdx = len(url)
	} else {
		nextIdx += firstIdx
	}

	if nextIdx <= firstIdx {
		return -1, -1
	}

	return firstIdx, nextIdx
}

// hostnameProfile converts internationalized hostnames to ASCII.  Unlike
// [idna.Lookup], it allows underscores, which real hostnames contain.
var hostnameProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(false))

// NormalizeHostname returns host in the form used for comparisons: lower case,
// without the trailing dot, with internationalized labels in punycode and with
// IP addresses in the canonical form.  ok is false if host isn't a valid
// hostname or IP address.
func NormalizeHostname(host string) (norm string, ok bool) {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", false
	}

	if ip, err := netip.ParseAddr(strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")); err == nil {
		return ip.String(), true
	}

	norm = strings.ToLower(host)
	if !isASCII(norm) {
		var err error
		norm, err = hostnameProfile.ToASCII(norm)
		if err != nil {
			return "", false
		}
	}

	return norm, IsHostname(norm)
}

// isASCII returns true if s only contains ASCII characters.
func isASCII(s string) (ok bool) {
	for i := range len(s) {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}

// IsHostname returns true if name is a lower-case ASCII hostname: dot-separated
// labels of 1 to 63 letters, digits, hyphens or underscores, 253 characters at
// most in total.
func IsHostname(name string) (ok bool) {
	if name == "" || len(name) > 253 {
		return false
	}

	for label := range strings.SplitSeq(name, ".") {
		if label == "" || len(label) > 63 {
			return false
		}

		for i := range len(label) {
			c := label[i]
			if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' && c != '_' {
				return false
			}
		}
	}

	return true
}
