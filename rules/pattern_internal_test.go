package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizePattern(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		pattern string
		want    []Token
	}{{
		name:    "empty",
		pattern: "",
		want:    nil,
	}, {
		name:    "host_anchor",
		pattern: "||Example.org^",
		want: []Token{
			{Kind: TokenHostAnchor},
			{Kind: TokenLiteral, Text: "example.org"},
			{Kind: TokenSeparator},
		},
	}, {
		name:    "both_anchors",
		pattern: "|http://a.b/*.gif|",
		want: []Token{
			{Kind: TokenStartAnchor},
			{Kind: TokenLiteral, Text: "http://a.b/"},
			{Kind: TokenWildcard},
			{Kind: TokenLiteral, Text: ".gif"},
			{Kind: TokenEndAnchor},
		},
	}, {
		name:    "collapsed_wildcards",
		pattern: "a**b",
		want: []Token{
			{Kind: TokenLiteral, Text: "a"},
			{Kind: TokenWildcard},
			{Kind: TokenLiteral, Text: "b"},
		},
	}, {
		name:    "inner_pipe",
		pattern: "a|b",
		want:    []Token{{Kind: TokenLiteral, Text: "a|b"}},
	}, {
		name:    "regex",
		pattern: `/ad\d/`,
		want:    []Token{{Kind: TokenRegex, Text: `ad\d`}},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tokenizePattern(tc.pattern, false))
		})
	}
}

func TestNewPattern_invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		tokens []Token
	}{{
		name:   "start_anchor_middle",
		tokens: []Token{{Kind: TokenLiteral, Text: "a"}, {Kind: TokenStartAnchor}},
	}, {
		name:   "end_anchor_middle",
		tokens: []Token{{Kind: TokenEndAnchor}, {Kind: TokenLiteral, Text: "a"}},
	}, {
		name:   "unknown_kind",
		tokens: []Token{{Kind: TokenRegex + 1}},
	}, {
		name:   "bad_regex",
		tokens: []Token{{Kind: TokenRegex, Text: "(("}},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := newPattern(tc.tokens, false)
			assert.Error(t, err)
		})
	}
}

func TestPattern_Match(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		want    assert.BoolAssertionFunc
		name    string
		pattern string
		url     string
	}{{
		want:    assert.True,
		name:    "empty",
		pattern: "",
		url:     "http://example.org/",
	}, {
		want:    assert.True,
		name:    "substring",
		pattern: "/banner/",
		url:     "http://example.org/img/banner/1.png",
	}, {
		want:    assert.True,
		name:    "wildcard",
		pattern: "/ads/*.gif",
		url:     "http://example.org/ads/x/y.gif",
	}, {
		want:    assert.False,
		name:    "wildcard_order",
		pattern: "/ads/*.gif",
		url:     "http://example.org/x.gif/ads/",
	}, {
		want:    assert.True,
		name:    "separator_slash",
		pattern: "example.org^",
		url:     "http://example.org/",
	}, {
		want:    assert.True,
		name:    "separator_end",
		pattern: "example.org^",
		url:     "http://example.org",
	}, {
		want:    assert.False,
		name:    "separator_letter",
		pattern: "example.org^",
		url:     "http://example.organic/",
	}, {
		want:    assert.False,
		name:    "separator_dot",
		pattern: "example^",
		url:     "http://example.org/",
	}, {
		want:    assert.True,
		name:    "separator_query",
		pattern: "^ad=1^",
		url:     "http://example.org/p?ad=1&x=2",
	}, {
		want:    assert.True,
		name:    "start_anchor",
		pattern: "|http://",
		url:     "http://example.org/",
	}, {
		want:    assert.False,
		name:    "start_anchor_not_start",
		pattern: "|example.org",
		url:     "http://example.org/",
	}, {
		want:    assert.True,
		name:    "end_anchor",
		pattern: ".gif|",
		url:     "http://example.org/a.gif",
	}, {
		want:    assert.False,
		name:    "end_anchor_not_end",
		pattern: ".gif|",
		url:     "http://example.org/a.gif?x",
	}, {
		want:    assert.True,
		name:    "end_anchor_repeated",
		pattern: "a*.gif|",
		url:     "http://example.org/a.gif/b.gif",
	}, {
		want:    assert.True,
		name:    "host_anchor",
		pattern: "||example.org^",
		url:     "https://example.org/path",
	}, {
		want:    assert.True,
		name:    "host_anchor_subdomain",
		pattern: "||example.org^",
		url:     "https://ads.example.org/path",
	}, {
		want:    assert.False,
		name:    "host_anchor_label",
		pattern: "||example.org^",
		url:     "https://badexample.org/",
	}, {
		want:    assert.False,
		name:    "host_anchor_in_path",
		pattern: "||example.org^",
		url:     "https://other.org/example.org/",
	}, {
		want:    assert.False,
		name:    "host_anchor_longer_host",
		pattern: "||github.com^",
		url:     "https://log.github.com-east-1.elb.amazonaws.com/",
	}, {
		want:    assert.True,
		name:    "host_anchor_retry",
		pattern: "||ads.example.org/x",
		url:     "https://ads.ads.example.org/x",
	}, {
		want:    assert.True,
		name:    "host_anchor_wildcard",
		pattern: "||example.org/*.js|",
		url:     "https://cdn.example.org/lib/a.js",
	}, {
		want:    assert.True,
		name:    "regex",
		pattern: `/^https?:\/\/[a-z]+\.example\.org\//`,
		url:     "https://ads.example.org/",
	}, {
		want:    assert.False,
		name:    "regex_no_match",
		pattern: `/^https?:\/\/[a-z]+\.example\.org\//`,
		url:     "https://example.org/",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p, err := newPattern(tokenizePattern(tc.pattern, false), false)
			require.NoError(t, err)

			tc.want(t, p.Match(tc.url))
		})
	}
}

func BenchmarkPattern_Match(b *testing.B) {
	p, err := newPattern(tokenizePattern("||example.org/*/ads/*.js^", false), false)
	require.NoError(b, err)

	const url = "https://cdn.static.example.org/assets/v2/ads/banner/loader.js?v=1"

	var ok bool

	b.ReportAllocs()
	for b.Loop() {
		ok = p.Match(url)
	}

	require.True(b, ok)
}
