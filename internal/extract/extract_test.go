package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waterbase/linkcrawler/internal/crawler"
)

func TestLinks(t *testing.T) {
	doc, err := Parse(`<html><body>
		<a href="/nyheter/artikel-1">Artikel</a>
		<a href="https://example.com/om-oss">Om oss</a>
		<a href="/nyheter/artikel-1">Dublett</a>
		<a href="#section">Anchor</a>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:info@example.com">Mail</a>
		<a href="tel:+4612345678">Tel</a>
		<a href="">Tom</a>
		<a>Saknar href</a>
	</body></html>`)
	require.NoError(t, err)

	links := Links(doc, "https://example.com/nyheter/")
	require.Equal(t, []string{
		"https://example.com/nyheter/artikel-1",
		"https://example.com/om-oss",
	}, links)
}

func TestLinksResolveRelativeAgainstPageURL(t *testing.T) {
	doc, err := Parse(`<a href="bilaga.pdf">Bilaga</a><a href="../arkiv">Arkiv</a>`)
	require.NoError(t, err)

	links := Links(doc, "https://example.com/dok/rapporter/")
	require.Equal(t, []string{
		"https://example.com/dok/rapporter/bilaga.pdf",
		"https://example.com/dok/arkiv",
	}, links)
}

func TestMetadataPrefersNamedMeta(t *testing.T) {
	doc, err := Parse(`<html><head>
		<title>Fallback Title</title>
		<meta name="title" content="Meta Title">
		<meta property="og:title" content="OG Title">
		<meta name="description" content="Meta Description">
		<meta name="pageID" content="abc-123">
		<meta property="og:type" content="article">
	</head></html>`)
	require.NoError(t, err)

	meta := Metadata(doc)
	require.Equal(t, crawler.PageMetadata{
		Title:       "Meta Title",
		Description: "Meta Description",
		PageID:      "abc-123",
		Type:        "article",
	}, meta)
}

func TestMetadataFallbackChain(t *testing.T) {
	doc, err := Parse(`<html><head>
		<title>Document Title</title>
		<meta property="og:description" content="OG Description">
	</head></html>`)
	require.NoError(t, err)

	meta := Metadata(doc)
	require.Equal(t, "Document Title", meta.Title)
	require.Equal(t, "OG Description", meta.Description)
	require.Equal(t, crawler.TypeWebpage, meta.Type)
	require.Empty(t, meta.PageID)
}

func TestMetadataEmptyDocument(t *testing.T) {
	doc, err := Parse(`<html><head></head><body></body></html>`)
	require.NoError(t, err)

	meta := Metadata(doc)
	require.Empty(t, meta.Title)
	require.Empty(t, meta.Description)
	require.Equal(t, crawler.TypeWebpage, meta.Type)
}
