package filterlist

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/webmacs/adblock/rules"
)

// ErrRuleRetrieval signals that the rule cannot be retrieved by the specified
// index.
const ErrRuleRetrieval errors.Error = "cannot retrieve the rule"

// RuleStorage is an ordered set of rules from one or more filter lists.  Rules
// are addressed by their position, which is what the lookup tables keep
// instead of the rules themselves.  A RuleStorage is immutable and safe for
// concurrent use.
type RuleStorage struct {
	rules []*rules.NetworkRule
}

// NewRuleStorage returns a new storage which owns rs.
func NewRuleStorage(rs []*rules.NetworkRule) (s *RuleStorage) {
	return &RuleStorage{
		rules: rs,
	}
}

// Len returns the number of rules in s.
func (s *RuleStorage) Len() (n int) {
	return len(s.rules)
}

// RetrieveRule returns the rule at position idx.
func (s *RuleStorage) RetrieveRule(idx int) (r *rules.NetworkRule, err error) {
	if idx < 0 || idx >= len(s.rules) {
		return nil, fmt.Errorf("index %d: %w", idx, ErrRuleRetrieval)
	}

	return s.rules[idx], nil
}

// Rules returns all rules of s in order.  The returned slice must not be
// modified.
func (s *RuleStorage) Rules() (rs []*rules.NetworkRule) {
	return s.rules
}

// With returns a new storage with the rules of s followed by added.  s is not
// changed.
func (s *RuleStorage) With(added []*rules.NetworkRule) (res *RuleStorage) {
	rs := make([]*rules.NetworkRule, 0, len(s.rules)+len(added))
	rs = append(rs, s.rules...)
	rs = append(rs, added...)

	return NewRuleStorage(rs)
}
