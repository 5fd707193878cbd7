package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNormalizerRejectsRelativeBase(t *testing.T) {
	_, err := NewNormalizer("/just/a/path", nil)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	n, err := NewNormalizer("https://example.com", []string{"tags"})
	require.NoError(t, err)

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"relative path resolves against base", "/nyheter/artikel", "https://example.com/nyheter/artikel"},
		{"fragment stripped", "https://example.com/page#section", "https://example.com/page"},
		{"host and scheme lowercased", "HTTPS://EXAMPLE.COM/Page", "https://example.com/Page"},
		{"default https port trimmed", "https://example.com:443/page", "https://example.com/page"},
		{"default http port trimmed", "http://example.com:80/page", "http://example.com/page"},
		{"empty path becomes root", "https://example.com", "https://example.com/"},
		{"dot segments collapsed", "https://example.com/a/b/../c", "https://example.com/a/c"},
		{"trailing slash preserved", "https://example.com/a/b/", "https://example.com/a/b/"},
		{"configured param stripped", "https://example.com/page?tags=water&id=7", "https://example.com/page?id=7"},
		{"remaining params sorted", "https://example.com/page?b=2&a=1", "https://example.com/page?a=1&b=2"},
		{"surrounding whitespace trimmed", "  /artikel  ", "https://example.com/artikel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := n.Normalize(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeEquivalentSpellingsCollapse(t *testing.T) {
	n, err := NewNormalizer("https://example.com", []string{"tags"})
	require.NoError(t, err)

	spellings := []string{
		"https://example.com/nyheter/artikel?tags=x",
		"HTTPS://Example.COM:443/nyheter/artikel",
		"/nyheter/./artikel#top",
	}
	first, err := n.Normalize(spellings[0])
	require.NoError(t, err)
	for _, s := range spellings[1:] {
		got, err := n.Normalize(s)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}

func TestNormalizeRejectsNonHTTPSchemes(t *testing.T) {
	n, err := NewNormalizer("https://example.com", nil)
	require.NoError(t, err)

	for _, raw := range []string{"ftp://example.com/file", "mailto:info@example.com"} {
		_, err := n.Normalize(raw)
		require.Error(t, err, raw)
	}
}

func TestSameOrigin(t *testing.T) {
	n, err := NewNormalizer("https://example.com", nil)
	require.NoError(t, err)

	require.True(t, n.SameOrigin("https://example.com/page"))
	require.False(t, n.SameOrigin("https://other.example.org/page"))
	require.False(t, n.SameOrigin("http://example.com/page"))
}

func TestMainEndpoint(t *testing.T) {
	require.Equal(t, "nyheter", MainEndpoint("https://example.com/nyheter/artikel-1"))
	require.Equal(t, "om-oss", MainEndpoint("https://example.com/om-oss"))
	require.Equal(t, "", MainEndpoint("https://example.com/"))
	require.Equal(t, "", MainEndpoint("https://example.com"))
}
