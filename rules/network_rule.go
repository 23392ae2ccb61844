package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	maskWhiteList    = "@@"
	optionsDelimiter = '$'
	escapeCharacter  = '\\'
)

// ErrTooShortRule is returned when the rule has nothing but the exception
// marker.
const ErrTooShortRule errors.Error = "the rule is too short"

var reEscapedOptionsDelimiter = regexp.MustCompile(regexp.QuoteMeta("\\$"))

// NetworkRule is a basic filtering rule: a URL pattern with optional
// modifiers.  A rule is immutable once created.
type NetworkRule struct {
	// RuleText is the original rule text.
	RuleText string

	// Shortcut is the longest literal of the rule pattern in lower case.  It
	// is empty for regex rules.
	Shortcut string

	// pattern is the compiled URL pattern.
	pattern *Pattern

	// permittedDomains is a list of permitted domains from the $domain
	// modifier.
	permittedDomains []string

	// restrictedDomains is a list of restricted domains from the $domain
	// modifier.
	restrictedDomains []string

	// unknownOptions are the modifiers this library does not know.  They are
	// kept as is and do not affect matching.
	unknownOptions []string

	// droppedOptions are the modifiers which were dropped as malformed.
	droppedOptions []string

	// FilterListID is the identifier of the filter list the rule comes from.
	FilterListID int

	enabledOptions  NetworkRuleOption // Flag with all enabled rule options
	disabledOptions NetworkRuleOption // Flag with all disabled rule options

	permittedTypes  FilterOption // Flag with all permitted request types. 0 means ALL.
	restrictedTypes FilterOption // Flag with all restricted request types. 0 means NONE.

	// Whitelist is true if this is an exception rule.
	Whitelist bool
}

// NewNetworkRule parses the rule text and returns a filter rule.  A malformed
// $domain modifier does not make the rule invalid, it is dropped instead, see
// [NetworkRule.DroppedOptions].
func NewNetworkRule(ruleText string, filterListID int) (r *NetworkRule, err error) {
	pattern, options, whitelist, err := parseRuleText(ruleText)
	if err != nil {
		return nil, err
	}

	r = &NetworkRule{
		RuleText:     ruleText,
		Whitelist:    whitelist,
		FilterListID: filterListID,
	}

	r.loadOptions(options)

	matchCase := r.IsOptionEnabled(OptionMatchCase)
	r.pattern, err = newPattern(tokenizePattern(pattern, matchCase), matchCase)
	if err != nil {
		return nil, &RuleSyntaxError{msg: err.Error(), ruleText: ruleText}
	}

	r.loadShortcut()

	return r, nil
}

// Text returns the original rule text.
func (f *NetworkRule) Text() (s string) {
	return f.RuleText
}

// GetFilterListID returns ID of the filter list this rule belongs to.
func (f *NetworkRule) GetFilterListID() (id int) {
	return f.FilterListID
}

// String implements the fmt.Stringer interface for *NetworkRule.
func (f *NetworkRule) String() (s string) {
	return f.RuleText
}

// Match checks if this filtering rule matches the specified request.
func (f *NetworkRule) Match(r *Request) (ok bool) {
	switch {
	case
		!f.matchShortcut(r),
		!f.matchThirdParty(r.Options),
		!f.matchRequestType(r.Options),
		!f.matchSourceDomain(r.SourceHostname),
		!f.matchPattern(r):
		return false
	}

	return true
}

// IsOptionEnabled returns true if the specified option is enabled
func (f *NetworkRule) IsOptionEnabled(option NetworkRuleOption) bool {
	return (f.enabledOptions & option) == option
}

// IsOptionDisabled returns true if the specified option is disabled
func (f *NetworkRule) IsOptionDisabled(option NetworkRuleOption) bool {
	return (f.disabledOptions & option) == option
}

// GetPermittedDomains returns the domains this rule is allowed on.
func (f *NetworkRule) GetPermittedDomains() (domains []string) {
	return f.permittedDomains
}

// GetRestrictedDomains returns the domains this rule is disabled on.
func (f *NetworkRule) GetRestrictedDomains() (domains []string) {
	return f.restrictedDomains
}

// UnknownOptions returns the modifiers which were kept opaquely.
func (f *NetworkRule) UnknownOptions() (opts []string) {
	return f.unknownOptions
}

// DroppedOptions returns the malformed modifiers which were dropped while
// parsing the rule.
func (f *NetworkRule) DroppedOptions() (opts []string) {
	return f.droppedOptions
}

// IsRegexRule returns true if rule's pattern is a regular expression.
func (f *NetworkRule) IsRegexRule() (ok bool) {
	return f.pattern.IsRegex()
}

// IsGeneric returns true if the rule is considered "generic", i.e. it is not
// restricted to a limited set of domains.  Please note that it might be
// forbidden on some domains, though.
func (f *NetworkRule) IsGeneric() (ok bool) {
	return len(f.permittedDomains) == 0
}

// matchShortcut simply checks if shortcut is a substring of the URL.
func (f *NetworkRule) matchShortcut(r *Request) (ok bool) {
	return strings.Contains(r.URLLowerCase, f.Shortcut)
}

// matchThirdParty checks the $third-party modifier against the party flags of
// the request.  A request without any party flag satisfies the modifier.
func (f *NetworkRule) matchThirdParty(opts FilterOption) (ok bool) {
	switch {
	case f.IsOptionEnabled(OptionThirdParty):
		return opts&FlagFirstParty == 0
	case f.IsOptionDisabled(OptionThirdParty):
		return opts&FlagThirdParty == 0
	default:
		return true
	}
}

// matchRequestType checks if the request resource types match the rule
// modifiers.  At least one of the permitted types must be present and none of
// the restricted ones.
func (f *NetworkRule) matchRequestType(opts FilterOption) (ok bool) {
	types := opts & TypeAll

	if f.permittedTypes != 0 && f.permittedTypes&types == 0 {
		return false
	}

	return f.restrictedTypes&types == 0
}

// matchSourceDomain checks if the specified filtering rule is allowed on this
// domain e.g. it checks the domain against what's specified in the $domain
// modifier.  Restrictions always win over permissions.
func (f *NetworkRule) matchSourceDomain(domain string) (ok bool) {
	if len(f.permittedDomains) == 0 && len(f.restrictedDomains) == 0 {
		return true
	}

	if isDomainOrSubdomainOfAny(domain, f.restrictedDomains) {
		// Domain or host is restricted
		// i.e. $domain=~example.org
		return false
	}

	if len(f.permittedDomains) > 0 {
		// i.e. $domain=example.org and we're checking example.com
		return isDomainOrSubdomainOfAny(domain, f.permittedDomains)
	}

	return true
}

// matchPattern matches the rule pattern against the request URL.
func (f *NetworkRule) matchPattern(r *Request) (ok bool) {
	if f.IsOptionEnabled(OptionMatchCase) {
		return f.pattern.Match(r.URL)
	}

	return f.pattern.Match(r.URLLowerCase)
}

// setRequestType permits or forbids the specified request type
func (f *NetworkRule) setRequestType(requestType FilterOption, permitted bool) {
	if permitted {
		f.permittedTypes |= requestType
	} else {
		f.restrictedTypes |= requestType
	}
}

// setOptionEnabled enables or disables the specified option
func (f *NetworkRule) setOptionEnabled(option NetworkRuleOption, enabled bool) {
	if enabled {
		f.enabledOptions |= option
	} else {
		f.disabledOptions |= option
	}
}

// loadOptions loads all the filtering rule options.
func (f *NetworkRule) loadOptions(options string) {
	if options == "" {
		return
	}

	for _, option := range splitWithEscapeCharacter(options, ',', escapeCharacter) {
		name, value, _ := strings.Cut(option, "=")
		f.loadOption(option, strings.ToLower(name), value)
	}
}

// loadOption loads specified option with its value (optional).  raw is the
// whole option text.
func (f *NetworkRule) loadOption(raw, name, value string) {
	switch name {
	case "third-party", "~first-party":
		f.setOptionEnabled(OptionThirdParty, true)
	case "~third-party", "first-party":
		f.setOptionEnabled(OptionThirdParty, false)
	case "match-case":
		f.setOptionEnabled(OptionMatchCase, true)
	case "~match-case":
		f.setOptionEnabled(OptionMatchCase, false)
	case "domain":
		permitted, restricted, err := loadDomains(value, "|")
		if err != nil {
			f.droppedOptions = append(f.droppedOptions, raw)

			return
		}

		f.permittedDomains = append(f.permittedDomains, permitted...)
		f.restrictedDomains = append(f.restrictedDomains, restricted...)
	default:
		negated := strings.HasPrefix(name, "~")
		if t, ok := typeOptions[strings.TrimPrefix(name, "~")]; ok && value == "" {
			f.setRequestType(t, !negated)

			return
		}

		f.unknownOptions = append(f.unknownOptions, raw)
	}
}

// loadShortcut extracts the shortcut from the pattern.
func (f *NetworkRule) loadShortcut() {
	shortcut := findShortcut(f.pattern.Tokens())

	// shortcut needs to be at least longer than 1 character
	if len(shortcut) > 1 {
		f.Shortcut = strings.ToLower(shortcut)
	}
}

// parseRuleText splits the rule text in multiple parts:
// pattern -- a basic rule pattern
// options -- a string with all rule options
// whitelist -- indicates if rule is "whitelist" (e.g. it should unblock requests, not block them)
func parseRuleText(ruleText string) (pattern, options string, whitelist bool, err error) {
	startIndex := 0
	if strings.HasPrefix(ruleText, maskWhiteList) {
		whitelist = true
		startIndex = len(maskWhiteList)
	}

	if len(ruleText) <= startIndex {
		return "", "", false, fmt.Errorf("%w: %q", ErrTooShortRule, ruleText)
	}

	// Setting pattern to rule text (for the case of empty options)
	pattern = ruleText[startIndex:]

	// Avoid parsing options inside of a regex rule
	if isRegexPattern(pattern) {
		return pattern, "", whitelist, nil
	}

	foundEscaped := false
	for i := len(ruleText) - 2; i >= startIndex; i-- {
		c := ruleText[i]

		if c != optionsDelimiter {
			continue
		}

		if i > startIndex && ruleText[i-1] == escapeCharacter {
			foundEscaped = true

			continue
		}

		pattern = ruleText[startIndex:i]
		options = ruleText[i+1:]

		if foundEscaped {
			// Find and replace escaped options delimiter
			options = reEscapedOptionsDelimiter.ReplaceAllString(options, string(optionsDelimiter))
		}

		// Options delimiter was found, exiting loop
		break
	}

	return pattern, options, whitelist, nil
}
