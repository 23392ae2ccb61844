package lookup_test

import (
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webmacs/adblock/internal/lookup"
	"github.com/webmacs/adblock/rules"
)

func TestSeqScanTable_TryAdd(t *testing.T) {
	t.Parallel()

	tbl := lookup.NewSeqScanTable(slogutil.NewDiscardLogger())
	s := newStorage(t, testRuleText)

	require.True(t, t.Run("first", func(t *testing.T) {
		assertRuleIsAdded(t, tbl, s, assert.True)
	}))

	require.True(t, t.Run("same", func(t *testing.T) {
		assertRuleIsAdded(t, tbl, s, assert.True)
	}))

	assert.Equal(t, 2, tbl.Len())
}

func TestSeqScanTable_MatchAll(t *testing.T) {
	t.Parallel()

	s := newStorage(t, testRuleTextAll)
	tbl := lookup.NewSeqScanTable(slogutil.NewDiscardLogger())
	loadTable(t, tbl, s)

	testCases := []struct {
		name         string
		urlStr       string
		wantRuleText string
	}{{
		name:         "no_match",
		urlStr:       testURLStrNoMatch,
		wantRuleText: "",
	}, {
		name:         "match",
		urlStr:       testURLStrWithDomain,
		wantRuleText: testRule,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.urlStr, testDomainNoMod, rules.TypeOther)
			assertMatch(t, tbl, r, tc.wantRuleText)
		})
	}
}

func TestSeqScanTable_MatchAll_duplicates(t *testing.T) {
	t.Parallel()

	s := newStorage(t, testRuleText+testRuleText)
	tbl := lookup.NewSeqScanTable(slogutil.NewDiscardLogger())
	loadTable(t, tbl, s)

	got := tbl.MatchAll(rules.NewRequest(testURLStrWithDomain, testDomain, rules.TypeOther))
	assert.Len(t, got, 2)
}

func BenchmarkSeqScanTable_MatchAll_list(b *testing.B) {
	s := newStorage(b, string(listData))
	tbl := lookup.NewSeqScanTable(slogutil.NewDiscardLogger())
	loadTable(b, tbl, s)

	r := rules.NewRequest(testURLStrListDomain, testHostListDomain, rules.TypeOther)

	var gotRules []*rules.NetworkRule

	b.ReportAllocs()
	for b.Loop() {
		gotRules = tbl.MatchAll(r)
	}

	matched := false
	for _, got := range gotRules {
		matched = matched || got.Text() == testRuleListDomain
	}

	assert.True(b, matched)
}
