package lookup

import (
	"strings"

	"github.com/webmacs/adblock/filterlist"
	"github.com/webmacs/adblock/internal/fasthash"
	"github.com/webmacs/adblock/rules"
)

// DomainsTable is a lookup table that uses domains from the $domain modifier
// to speed up the rules search.  Only the rules with $domain modifier are
// eligible for this lookup table, and only if none of the permitted domains is
// a wildcard one, e.g. "example.*".
type DomainsTable struct {
	// Storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// Domain lookup table. Key is the domain name hash.
	domainsLookupTable map[uint32][]int

	// count is the number of rules added.
	count int
}

// type check
var _ Table = (*DomainsTable)(nil)

// NewDomainsTable creates a new instance of the DomainsTable.
func NewDomainsTable(rs *filterlist.RuleStorage) (s *DomainsTable) {
	return &DomainsTable{
		ruleStorage:        rs,
		domainsLookupTable: map[uint32][]int{},
	}
}

// TryAdd implements the [Table] interface for *DomainsTable.
func (d *DomainsTable) TryAdd(f *rules.NetworkRule, idx int) (ok bool) {
	permittedDomains := f.GetPermittedDomains()
	if len(permittedDomains) == 0 {
		return false
	}

	for _, domain := range permittedDomains {
		if strings.HasSuffix(domain, ".*") {
			return false
		}
	}

	for _, domain := range permittedDomains {
		hash := fasthash.String(domain)
		d.domainsLookupTable[hash] = append(d.domainsLookupTable[hash], idx)
	}

	d.count++

	return true
}

// MatchAll implements the [Table] interface for *DomainsTable.
func (d *DomainsTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	if r.SourceHostname == "" {
		return result
	}

	for _, domain := range getSubdomains(r.SourceHostname) {
		matchingRules, ok := d.domainsLookupTable[fasthash.String(domain)]
		if !ok {
			continue
		}

		for _, ruleIdx := range matchingRules {
			rule, err := d.ruleStorage.RetrieveRule(ruleIdx)
			if err != nil || ruleIn(rule, result) || !rule.Match(r) {
				continue
			}

			result = append(result, rule)
		}
	}

	return result
}

// Len returns the number of rules in the table.
func (d *DomainsTable) Len() (n int) {
	return d.count
}

// getSubdomains splits the specified hostname and returns all subdomains
// (including the hostname itself), shortest first.
func getSubdomains(hostname string) (subdomains []string) {
	subdomains = append(subdomains, hostname)
	for i := strings.IndexByte(hostname, '.'); i >= 0; i = strings.IndexByte(hostname, '.') {
		hostname = hostname[i+1:]
		subdomains = append(subdomains, hostname)
	}

	return subdomains
}
