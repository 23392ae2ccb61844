package rules

import (
	"fmt"
	"strings"
)

// RuleData is the flat representation of a [NetworkRule] used for persisting
// rules without keeping their text parsable.
type RuleData struct {
	// Text is the original rule text.
	Text string

	// Tokens are the pattern tokens.
	Tokens []Token

	// PermittedDomains are the included domains of the $domain modifier.
	PermittedDomains []string

	// RestrictedDomains are the excluded domains of the $domain modifier.
	RestrictedDomains []string

	// UnknownOptions are the modifiers kept opaquely.
	UnknownOptions []string

	// FilterListID is the identifier of the filter list of the rule.
	FilterListID int

	// EnabledOptions and DisabledOptions are the non-type modifiers.
	EnabledOptions  NetworkRuleOption
	DisabledOptions NetworkRuleOption

	// PermittedTypes and RestrictedTypes are the resource-type modifiers.
	PermittedTypes  FilterOption
	RestrictedTypes FilterOption

	// Whitelist is true for exception rules.
	Whitelist bool
}

// Data returns the flat representation of f.  The slices are shared with f
// and must not be modified.
func (f *NetworkRule) Data() (d *RuleData) {
	return &RuleData{
		Text:              f.RuleText,
		Tokens:            f.pattern.Tokens(),
		PermittedDomains:  f.permittedDomains,
		RestrictedDomains: f.restrictedDomains,
		UnknownOptions:    f.unknownOptions,
		FilterListID:      f.FilterListID,
		EnabledOptions:    f.enabledOptions,
		DisabledOptions:   f.disabledOptions,
		PermittedTypes:    f.permittedTypes,
		RestrictedTypes:   f.restrictedTypes,
		Whitelist:         f.Whitelist,
	}
}

// NewNetworkRuleFromData restores a rule from its flat representation without
// parsing the rule text.  The shortcut is derived from the tokens the same way
// [NewNetworkRule] derives it.
func NewNetworkRuleFromData(d *RuleData) (r *NetworkRule, err error) {
	for _, t := range d.Tokens {
		if t.Kind == TokenLiteral && t.Text == "" {
			return nil, fmt.Errorf("rule %q: empty literal token", d.Text)
		}
	}

	for _, domains := range [][]string{d.PermittedDomains, d.RestrictedDomains} {
		for _, domain := range domains {
			if domain == "" || strings.ToLower(domain) != domain {
				return nil, fmt.Errorf("rule %q: bad domain %q", d.Text, domain)
			}
		}
	}

	r = &NetworkRule{
		RuleText:          d.Text,
		Whitelist:         d.Whitelist,
		FilterListID:      d.FilterListID,
		permittedDomains:  d.PermittedDomains,
		restrictedDomains: d.RestrictedDomains,
		unknownOptions:    d.UnknownOptions,
		enabledOptions:    d.EnabledOptions,
		disabledOptions:   d.DisabledOptions,
		permittedTypes:    d.PermittedTypes,
		restrictedTypes:   d.RestrictedTypes,
	}

	r.pattern, err = newPattern(d.Tokens, r.IsOptionEnabled(OptionMatchCase))
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", d.Text, err)
	}

	r.loadShortcut()

	return r, nil
}
