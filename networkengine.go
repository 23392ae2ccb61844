package adblock

import (
	"context"
	"log/slog"

	"github.com/webmacs/adblock/filterlist"
	"github.com/webmacs/adblock/internal/lookup"
	"github.com/webmacs/adblock/rules"
)

// NetworkEngine is the engine that supports quick search over network rules.
// It is immutable once built and is safe for concurrent use.
type NetworkEngine struct {
	// ruleStorage is the storage owning the network rules.  The lookup tables
	// keep the positions of the rules in it.
	ruleStorage *filterlist.RuleStorage

	shortcuts *lookup.ShortcutsTable
	domains   *lookup.DomainsTable
	seqScan   *lookup.SeqScanTable

	// lookupTables is the array of lookup tables which we need to speed up
	// the matching speed.  Note, that the order of lookup tables is very
	// important, we'll try to add rules to the faster table first. If it's not
	// eligible for that lookup table, we'll then proceed to a slower one.
	lookupTables []lookup.Table
}

// NewNetworkEngine builds an instance of the network engine.  It adds every
// rule of s to exactly one of the internal lookup tables.  logger must not be
// nil.
func NewNetworkEngine(ctx context.Context, s *filterlist.RuleStorage, logger *slog.Logger) (n *NetworkEngine) {
	n = &NetworkEngine{
		ruleStorage: s,
		shortcuts:   lookup.NewShortcutsTable(s),
		domains:     lookup.NewDomainsTable(s),
		seqScan:     lookup.NewSeqScanTable(logger),
	}

	n.lookupTables = []lookup.Table{n.shortcuts, n.domains, n.seqScan}

	for idx, f := range s.Rules() {
		n.addRule(f, idx)
	}

	logger.DebugContext(
		ctx,
		"built index",
		"rules", s.Len(),
		"shortcuts", n.shortcuts.Len(),
		"domains", n.domains.Len(),
		"seq_scan", n.seqScan.Len(),
	)

	return n
}

// addRule adds rule to the first lookup table that accepts it.  The
// sequential scan table accepts every rule.
func (n *NetworkEngine) addRule(f *rules.NetworkRule, idx int) {
	for _, table := range n.lookupTables {
		if table.TryAdd(f, idx) {
			return
		}
	}
}

// Match searches over all filtering rules loaded to the engine.  It returns
// true if the request must be blocked alongside the rule that decided it.  Any
// matching exception rule wins over the blocking ones, in that case the
// exception rule is returned with false.  If nothing matches, rule is nil.
func (n *NetworkEngine) Match(r *rules.Request) (rule *rules.NetworkRule, ok bool) {
	var blocking *rules.NetworkRule
	for _, table := range n.lookupTables {
		for _, f := range table.MatchAll(r) {
			if f.Whitelist {
				return f, false
			}

			if blocking == nil {
				blocking = f
			}
		}
	}

	return blocking, blocking != nil
}

// MatchAll finds all rules matching the specified request regardless of
// the rule types.  It will find both allowlist and blocklist rules.
func (n *NetworkEngine) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	for _, table := range n.lookupTables {
		result = append(result, table.MatchAll(r)...)
	}

	return result
}

// RulesCount returns the number of rules in the engine, duplicates included.
func (n *NetworkEngine) RulesCount() (c int) {
	return n.ruleStorage.Len()
}

// Storage returns the rule storage of the engine.
func (n *NetworkEngine) Storage() (s *filterlist.RuleStorage) {
	return n.ruleStorage
}
