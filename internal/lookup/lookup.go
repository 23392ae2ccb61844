// Package lookup implements index structures that we use to improve matching
// speed in the engines.
package lookup

import "github.com/webmacs/adblock/rules"

// Table is a common interface for all lookup tables.
type Table interface {
	// TryAdd attempts to add the rule to the lookup table.  It returns
	// true/false depending on whether the rule is eligible for this lookup
	// table.  idx is the position of the rule in the rule storage.
	TryAdd(f *rules.NetworkRule, idx int) (ok bool)

	// MatchAll finds all matching rules from this lookup table.
	MatchAll(r *rules.Request) (result []*rules.NetworkRule)
}

// ruleIn checks if the particular rule instance is contained by the slice of
// pointers.  Duplicate rules are different instances, so they are never
// collapsed by this check.
func ruleIn(rule *rules.NetworkRule, rs []*rules.NetworkRule) (ok bool) {
	for _, r := range rs {
		if r == rule {
			return true
		}
	}

	return false
}
