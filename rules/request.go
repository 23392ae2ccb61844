package rules

import (
	"strings"

	"github.com/webmacs/adblock/internal/ufnet"
	"golang.org/x/net/publicsuffix"
)

// Request represents a web filtering request with all its necessary
// properties.
type Request struct {
	// URL is the full request URL.
	URL string

	// URLLowerCase is the full request URL in lower case.
	URLLowerCase string

	// Hostname is the hostname of the request URL.
	Hostname string

	// SourceHostname is the hostname of the document the request originates
	// from, in lower case.
	SourceHostname string

	// Options are the resource type and party flags of the request.
	Options FilterOption
}

// NewRequest creates a new instance of "Request" and populates its fields.
// sourceHostname is the domain of the document making the request.  Both
// hostnames are normalized the same way as the domains of the rules, see
// [ufnet.NormalizeHostname].
func NewRequest(url, sourceHostname string, opts FilterOption) (r *Request) {
	urlLower := strings.ToLower(url)

	return &Request{
		URL:            url,
		URLLowerCase:   urlLower,
		Hostname:       normalizeHostname(ufnet.ExtractHostname(urlLower)),
		SourceHostname: normalizeHostname(sourceHostname),
		Options:        opts,
	}
}

// normalizeHostname returns the normalized host or, if it isn't a valid
// hostname, host in lower case without the trailing dot.
func normalizeHostname(host string) (norm string) {
	norm, ok := ufnet.NormalizeHostname(host)
	if !ok {
		norm = strings.TrimSuffix(strings.ToLower(host), ".")
	}

	return norm
}

// DetectThirdParty sets either [FlagThirdParty] or [FlagFirstParty] unless
// the caller has already set one of them.  A request is a third-party one if
// the registrable domains of the request and of the source differ.
func (r *Request) DetectThirdParty() {
	if r.Options&(FlagThirdParty|FlagFirstParty) != 0 || r.Hostname == "" || r.SourceHostname == "" {
		return
	}

	domain := effectiveTLDPlusOne(r.Hostname)
	if domain == "" {
		domain = r.Hostname
	}

	sourceDomain := effectiveTLDPlusOne(r.SourceHostname)
	if sourceDomain == "" {
		sourceDomain = r.SourceHostname
	}

	if domain == sourceDomain {
		r.Options |= FlagFirstParty
	} else {
		r.Options |= FlagThirdParty
	}
}

// effectiveTLDPlusOne is a faster version of publicsuffix.EffectiveTLDPlusOne
// that avoids using fmt.Errorf when the domain is less or equal the suffix.
func effectiveTLDPlusOne(hostname string) (domain string) {
	hostnameLen := len(hostname)
	if hostnameLen < 1 {
		return ""
	}

	if hostname[0] == '.' || hostname[hostnameLen-1] == '.' {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := hostnameLen - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return ""
	}

	return hostname[1+strings.LastIndex(hostname[:i], "."):]
}
