package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxSitemapBodyBytes = 10 << 20

type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapSeeder discovers seed URLs from a site's sitemap.xml so a crawl
// can start wider than the landing page. Failures degrade to no seeds; the
// caller falls back to the base URL.
type SitemapSeeder struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewSitemapSeeder builds a seeder using the provided HTTP client.
func NewSitemapSeeder(client *http.Client, userAgent string, logger *zap.Logger) *SitemapSeeder {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SitemapSeeder{client: client, userAgent: userAgent, logger: logger}
}

// Seeds fetches <base>/sitemap.xml and returns the listed URLs. A sitemap
// index is followed one level deep.
func (s *SitemapSeeder) Seeds(ctx context.Context, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		s.logger.Warn("invalid base url for sitemap", zap.String("base_url", baseURL), zap.Error(err))
		return nil
	}
	sitemapURL := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/sitemap.xml"}

	body, err := s.get(ctx, sitemapURL.String())
	if err != nil {
		s.logger.Warn("sitemap fetch failed; seeding from base url only",
			zap.String("url", sitemapURL.String()), zap.Error(err))
		return nil
	}

	locs, err := s.parse(ctx, body)
	if err != nil {
		s.logger.Warn("sitemap parse failed; seeding from base url only", zap.Error(err))
		return nil
	}
	s.logger.Info("seeded from sitemap", zap.Int("urls", len(locs)))
	return locs
}

func (s *SitemapSeeder) parse(ctx context.Context, body []byte) ([]string, error) {
	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err == nil {
		return collectLocs(set), nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("unmarshal sitemap: %w", err)
	}

	var locs []string
	for _, child := range index.Sitemaps {
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		childBody, err := s.get(ctx, loc)
		if err != nil {
			s.logger.Warn("child sitemap fetch failed", zap.String("url", loc), zap.Error(err))
			continue
		}
		var childSet sitemapURLSet
		if err := xml.Unmarshal(childBody, &childSet); err != nil {
			s.logger.Warn("child sitemap parse failed", zap.String("url", loc), zap.Error(err))
			continue
		}
		locs = append(locs, collectLocs(childSet)...)
	}
	return locs, nil
}

func (s *SitemapSeeder) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Debug("close sitemap body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap body: %w", err)
	}
	return body, nil
}

func collectLocs(set sitemapURLSet) []string {
	locs := make([]string, 0, len(set.URLs))
	for _, entry := range set.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}
