package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/webmacs/adblock/internal/ufnet"
)

// RuleSyntaxError represents an error while parsing a filtering rule
type RuleSyntaxError struct {
	msg      string
	ruleText string
}

// type check
var _ error = (*RuleSyntaxError)(nil)

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	return fmt.Sprintf("syntax error: %s, rule: %s", e.msg, e.ruleText)
}

// ErrUnsupportedRule signals that this might be a valid rule type, but it is
// not supported by this library, e.g. a cosmetic rule.
const ErrUnsupportedRule errors.Error = "this type of rules is unsupported"

var cosmeticRulesMarkers = []string{
	// HTML filtering
	"$$", "$@$",
	// Script rules
	"#%#", "#@%#",
	// Element hiding rules
	"##", "#@#",
	// CSS injection
	"#$#", "#@$#",
	// ExtCSS hiding rules
	"#?#", "#@?#",
	// ExtCSS injection rules
	"#$?#", "#@$?#",
}

func init() {
	// This is important for findRuleMarker to check the longest markers first.
	sort.Sort(sort.Reverse(byLength(cosmeticRulesMarkers)))
}

// NewRule creates a new filtering rule from the specified line.  It returns
// nil and no error if the line is empty or if it is a comment.  Cosmetic rules
// are recognized and rejected with ErrUnsupportedRule.
func NewRule(line string, filterListID int) (r *NetworkRule, err error) {
	line = strings.TrimSpace(line)

	if line == "" || isComment(line) {
		return nil, nil
	}

	if isCosmetic(line) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRule, line)
	}

	return NewNetworkRule(line, filterListID)
}

// isComment checks if the line is a comment or a list metadata, e.g.
// "[Adblock Plus 2.0]".
func isComment(line string) (ok bool) {
	switch line[0] {
	case '!', '[':
		return true
	case '#':
		if len(line) == 1 {
			return true
		}

		// Now we should check that this is not a cosmetic rule
		for _, marker := range cosmeticRulesMarkers {
			if strings.HasPrefix(line, marker) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// isCosmetic checks if this is a cosmetic filtering rule
func isCosmetic(line string) (ok bool) {
	return findRuleMarker(line, cosmeticRulesMarkers, '#') != "" ||
		findRuleMarker(line, cosmeticRulesMarkers, '$') != ""
}

// findRuleMarker looks for a cosmetic rule marker in the rule text and returns
// the marker found or an empty string if nothing is found.  markers must be
// sorted by length in descending order, firstMarkerChar is the first character
// of the markers we're looking for.
func findRuleMarker(ruleText string, markers []string, firstMarkerChar byte) (marker string) {
	startIndex := strings.IndexByte(ruleText, firstMarkerChar)
	if startIndex == -1 {
		return ""
	}

	for _, m := range markers {
		if m[0] == firstMarkerChar && strings.HasPrefix(ruleText[startIndex:], m) {
			return m
		}
	}

	return ""
}

// loadDomains loads the value of the $domain modifier.  sep is the separator
// character, for network rules it is '|'.  Domains are normalized with
// [ufnet.NormalizeHostname], so internationalized names are kept in punycode.
func loadDomains(domains, sep string) (permittedDomains, restrictedDomains []string, err error) {
	if domains == "" {
		return nil, nil, errors.Error("no domains specified")
	}

	for d := range strings.SplitSeq(domains, sep) {
		d, restricted := strings.CutPrefix(d, "~")

		name, wildcard := strings.CutSuffix(d, ".*")
		name, ok := ufnet.NormalizeHostname(name)
		if !ok {
			return nil, nil, fmt.Errorf("invalid domain %q in %q", d, domains)
		}

		if wildcard {
			name += ".*"
		}

		if restricted {
			restrictedDomains = append(restrictedDomains, name)
		} else {
			permittedDomains = append(permittedDomains, name)
		}
	}

	return permittedDomains, restrictedDomains, nil
}
