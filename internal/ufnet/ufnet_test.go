package ufnet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webmacs/adblock/internal/ufnet"
)

func TestExtractHostname(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		url  string
		want string
	}{{
		name: "http",
		url:  "http://ads.example.com/x",
		want: "ads.example.com",
	}, {
		name: "port",
		url:  "https://example.org:8443/path",
		want: "example.org",
	}, {
		name: "query",
		url:  "http://example.org?q=1",
		want: "example.org",
	}, {
		name: "no_path",
		url:  "http://example.org",
		want: "example.org",
	}, {
		name: "non_hierarchical",
		url:  "stun:stun.example.org",
		want: "stun.example.org",
	}, {
		name: "empty_host",
		url:  "file:///etc/hosts",
		want: "",
	}, {
		name: "not_url",
		url:  "example",
		want: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ufnet.ExtractHostname(tc.url))
		})
	}
}

func TestHostnameBounds(t *testing.T) {
	t.Parallel()

	const u = "http://sub.example.com/a"
	start, end := ufnet.HostnameBounds(u)
	assert.Equal(t, 7, start)
	assert.Equal(t, "sub.example.com", u[start:end])

	start, _ = ufnet.HostnameBounds("nothing")
	assert.Equal(t, -1, start)
}

func TestNormalizeHostname(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		want     assert.BoolAssertionFunc
		name     string
		in       string
		wantNorm string
	}{{
		want:     assert.True,
		name:     "simple",
		in:       "Example.COM.",
		wantNorm: "example.com",
	}, {
		want:     assert.True,
		name:     "single_label",
		in:       "localhost",
		wantNorm: "localhost",
	}, {
		want:     assert.True,
		name:     "underscore",
		in:       "my_site.example",
		wantNorm: "my_site.example",
	}, {
		want:     assert.True,
		name:     "idn",
		in:       "Пример.рф",
		wantNorm: "xn--e1afmkfd.xn--p1ai",
	}, {
		want:     assert.True,
		name:     "punycode",
		in:       "xn--e1afmkfd.xn--p1ai",
		wantNorm: "xn--e1afmkfd.xn--p1ai",
	}, {
		want:     assert.True,
		name:     "ipv4",
		in:       "192.168.0.1",
		wantNorm: "192.168.0.1",
	}, {
		want:     assert.True,
		name:     "ipv6",
		in:       "[2001:DB8::1]",
		wantNorm: "2001:db8::1",
	}, {
		want:     assert.False,
		name:     "empty",
		in:       "",
		wantNorm: "",
	}, {
		want:     assert.False,
		name:     "empty_label",
		in:       "a..example",
		wantNorm: "",
	}, {
		want:     assert.False,
		name:     "slash",
		in:       "a/b.example",
		wantNorm: "",
	}, {
		want:     assert.False,
		name:     "space",
		in:       "a b.example",
		wantNorm: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			norm, ok := ufnet.NormalizeHostname(tc.in)
			tc.want(t, ok)

			if ok {
				assert.Equal(t, tc.wantNorm, norm)
			}
		})
	}
}

func TestIsHostname(t *testing.T) {
	t.Parallel()

	assert.True(t, ufnet.IsHostname("sub.example.co.uk"))
	assert.True(t, ufnet.IsHostname("a-b_c.example"))
	assert.False(t, ufnet.IsHostname("Example.com"))
	assert.False(t, ufnet.IsHostname("example.com."))
	assert.False(t, ufnet.IsHostname(strings.Repeat("a", 64)+".example"))
	assert.False(t, ufnet.IsHostname(strings.Repeat("a.", 127)+"aa"))
}
