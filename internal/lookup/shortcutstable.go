package lookup

import (
	"math"
	"strings"

	"github.com/webmacs/adblock/filterlist"
	"github.com/webmacs/adblock/internal/fasthash"
	"github.com/webmacs/adblock/rules"
)

// ShortcutLength is the length of the shortcut windows kept in the
// [ShortcutsTable].  Rules with shorter shortcuts are not eligible for it.
const ShortcutLength = 5

// ShortcutsTable is a table that relies on the rule "shortcuts" to quickly
// find matching rules.  Here's how it works:
//
//  1. We extract from the rule the longest substring without special
//     characters from, this string is called a "shortcut".
//  2. We take a part of it of length [ShortcutLength] and put it to the
//     internal hashmap.
//  3. When we match a request, we take all substrings of length
//     [ShortcutLength] from it and check if there're any rules in the
//     hashmap.
//
// Note that only the rules with a shortcut are eligible for this table.
type ShortcutsTable struct {
	// Storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// Map where the key is the hash of the shortcut and value is a list
	// of rules' indexes.
	shortcutsLookupTable map[uint32][]int

	// Histogram helps us choose the best shortcut for the shortcuts
	// lookup table.
	shortcutsHistogram map[uint32]int
}

// type check
var _ Table = (*ShortcutsTable)(nil)

// NewShortcutsTable creates a new instance of the ShortcutsTable.
func NewShortcutsTable(rs *filterlist.RuleStorage) (s *ShortcutsTable) {
	return &ShortcutsTable{
		ruleStorage:          rs,
		shortcutsLookupTable: map[uint32][]int{},
		shortcutsHistogram:   map[uint32]int{},
	}
}

// TryAdd implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) TryAdd(f *rules.NetworkRule, idx int) (ok bool) {
	if len(f.Shortcut) < ShortcutLength || isAnyURLShortcut(f) {
		return false
	}

	// Find the applicable shortcut (the least used)
	var shortcutHash uint32
	minCount := math.MaxInt32
	for i := 0; i <= len(f.Shortcut)-ShortcutLength; i++ {
		hash := fasthash.Between(f.Shortcut, i, i+ShortcutLength)
		count := s.shortcutsHistogram[hash]
		if count < minCount {
			minCount = count
			shortcutHash = hash
		}
	}

	s.shortcutsHistogram[shortcutHash] = minCount + 1
	s.shortcutsLookupTable[shortcutHash] = append(s.shortcutsLookupTable[shortcutHash], idx)

	return true
}

// MatchAll implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	for i := 0; i <= len(r.URLLowerCase)-ShortcutLength; i++ {
		// The shortcutsLookupTable contains the shortcuts of rules of
		// fixed length and rules itself.  Go through all the substrings
		// of passed URL having such length to find matching rules.
		hash := fasthash.Between(r.URLLowerCase, i, i+ShortcutLength)
		matchingRules, ok := s.shortcutsLookupTable[hash]
		if !ok {
			continue
		}

		for _, ruleIdx := range matchingRules {
			rule, err := s.ruleStorage.RetrieveRule(ruleIdx)

			// Make sure that the same rule isn't returned twice.
			// This happens when the URL has a repeating pattern.
			if err != nil || ruleIn(rule, result) || !rule.Match(r) {
				continue
			}

			result = append(result, rule)
		}
	}

	return result
}

// Len returns the number of rules in the table.
func (s *ShortcutsTable) Len() (n int) {
	for _, idxs := range s.shortcutsLookupTable {
		n += len(idxs)
	}

	return n
}

// isAnyURLShortcut checks if the rule potentially matches too many URLs.
// We'd better use another type of lookup table for this kind of rules.
func isAnyURLShortcut(f *rules.NetworkRule) (ok bool) {
	switch shLen := len(f.Shortcut); {
	case
		shLen < len("ws://")+1 && strings.HasPrefix(f.Shortcut, "ws:"),
		shLen < len("wss://")+1 && strings.HasPrefix(f.Shortcut, "wss:"),
		shLen < len("https://")+1 && strings.HasPrefix(f.Shortcut, "http"):
		return true
	default:
		return false
	}
}
