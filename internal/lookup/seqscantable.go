package lookup

import (
	"context"
	"log/slog"

	"github.com/webmacs/adblock/rules"
)

// SeqScanTable is basically just a list of network rules that are scanned
// sequentially.  Here we put the rules that are not eligible for other tables.
// It accepts every rule, including the duplicates.
type SeqScanTable struct {
	logger *slog.Logger
	rules  []*rules.NetworkRule
}

// type check
var _ Table = (*SeqScanTable)(nil)

// NewSeqScanTable returns a new empty *SeqScanTable.  logger must not be nil.
func NewSeqScanTable(logger *slog.Logger) (s *SeqScanTable) {
	return &SeqScanTable{
		logger: logger,
	}
}

// TryAdd implements the [Table] interface for *SeqScanTable.
func (s *SeqScanTable) TryAdd(f *rules.NetworkRule, idx int) (ok bool) {
	s.logger.DebugContext(context.Background(), "rule goes to sequential scan", "idx", idx, "rule", f.Text())
	s.rules = append(s.rules, f)

	return true
}

// MatchAll implements the [Table] interface for *SeqScanTable.
func (s *SeqScanTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	for _, rule := range s.rules {
		if rule.Match(r) {
			result = append(result, rule)
		}
	}

	return result
}

// Len returns the number of rules in the table.
func (s *SeqScanTable) Len() (n int) {
	return len(s.rules)
}
