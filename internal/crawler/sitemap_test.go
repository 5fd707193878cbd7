package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSitemapSeedsFromURLSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sitemap.xml", r.URL.Path)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/nyheter</loc></url>
  <url><loc> https://example.com/om-oss </loc></url>
  <url><loc></loc></url>
</urlset>`)
	}))
	defer srv.Close()

	seeder := NewSitemapSeeder(srv.Client(), testUserAgent, zap.NewNop())
	seeds := seeder.Seeds(context.Background(), srv.URL)
	require.Equal(t, []string{"https://example.com/nyheter", "https://example.com/om-oss"}, seeds)
}

func TestSitemapSeedsFromIndex(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/sitemap-pages.xml</loc></sitemap>
  <sitemap><loc>%s/sitemap-missing.xml</loc></sitemap>
</sitemapindex>`, srv.URL, srv.URL)
		case "/sitemap-pages.xml":
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc></url>
  <url><loc>https://example.com/b</loc></url>
</urlset>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	seeder := NewSitemapSeeder(srv.Client(), testUserAgent, zap.NewNop())
	seeds := seeder.Seeds(context.Background(), srv.URL)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, seeds)
}

func TestSitemapMissingReturnsNoSeeds(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	seeder := NewSitemapSeeder(srv.Client(), testUserAgent, zap.NewNop())
	require.Nil(t, seeder.Seeds(context.Background(), srv.URL))
}

func TestSitemapUnparsableReturnsNoSeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not xml at all")
	}))
	defer srv.Close()

	seeder := NewSitemapSeeder(srv.Client(), testUserAgent, zap.NewNop())
	require.Nil(t, seeder.Seeds(context.Background(), srv.URL))
}
