package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBodyBytes = 1 << 20

// RobotsPolicy enforces robots.txt directives plus supplemental disallowed
// path prefixes configured independently of robots.txt. Supplemental rules
// are consulted first and short-circuit to deny; otherwise the parsed group
// for the crawler's user agent decides.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger

	mu           sync.RWMutex
	group        *robotstxt.Group
	supplemental []string
}

// NewRobotsPolicy creates a policy that allows everything until Load has
// parsed the site's robots.txt.
func NewRobotsPolicy(client *http.Client, userAgent string, logger *zap.Logger) *RobotsPolicy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Load fetches and parses <base>/robots.txt. An unreachable or unreadable
// robots.txt degrades to allow-all with a warning; the crawl proceeds.
func (p *RobotsPolicy) Load(ctx context.Context, baseURL string) {
	base, err := url.Parse(baseURL)
	if err != nil {
		p.logger.Warn("invalid base url for robots; allowing all", zap.String("base_url", baseURL), zap.Error(err))
		return
	}
	robotsURL := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		p.logger.Warn("build robots request failed; allowing all", zap.Error(err))
		return
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("robots fetch failed; allowing all", zap.String("url", robotsURL.String()), zap.Error(err))
		return
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		p.logger.Warn("read robots body failed; allowing all", zap.Error(err))
		return
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		p.logger.Warn("parse robots failed; allowing all", zap.Int("status", resp.StatusCode), zap.Error(err))
		return
	}

	p.mu.Lock()
	p.group = data.FindGroup(p.userAgent)
	p.mu.Unlock()
	p.logger.Debug("robots.txt loaded", zap.String("url", robotsURL.String()), zap.Int("status", resp.StatusCode))
}

// AddDisallowedPath registers a path prefix denied regardless of what
// robots.txt says, mimicking an extra Disallow rule.
func (p *RobotsPolicy) AddDisallowedPath(prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return
	}
	p.mu.Lock()
	p.supplemental = append(p.supplemental, prefix)
	p.mu.Unlock()
}

// Allowed implements Policy. Rules are matched against the path plus query
// string so query-discriminating directives apply. Unparsable URLs are denied.
func (p *RobotsPolicy) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	urlPath := u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	if u.RawQuery != "" {
		urlPath += "?" + u.RawQuery
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, prefix := range p.supplemental {
		if strings.HasPrefix(urlPath, prefix) {
			return false
		}
	}
	if p.group == nil {
		return true
	}
	return p.group.Test(urlPath)
}

var _ Policy = (*RobotsPolicy)(nil)
