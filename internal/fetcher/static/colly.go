// Package static implements the page fetcher with plain HTTP via Colly,
// for sites that render without JavaScript.
package static

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/waterbase/linkcrawler/internal/crawler"
	"github.com/waterbase/linkcrawler/internal/extract"
)

// Config controls the static fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.Fetcher with a single-page Colly collector.
// Frontier traversal stays with the scheduler: the collector never follows
// links on its own.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a static Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Fetch downloads one page and extracts links and metadata from its body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return crawler.FetchResult{}, fmt.Errorf("fetch canceled: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		finalURL string
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(rawURL); err != nil {
		return crawler.FetchResult{}, fmt.Errorf("visit %s: %w", rawURL, err)
	}
	collector.Wait()
	if fetchErr != nil {
		return crawler.FetchResult{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
	}
	if finalURL == "" {
		finalURL = rawURL
	}

	doc, err := extract.Parse(string(body))
	if err != nil {
		return crawler.FetchResult{}, fmt.Errorf("parse body: %w", err)
	}

	result := crawler.FetchResult{
		URL:   finalURL,
		Links: extract.Links(doc, finalURL),
		Meta:  extract.Metadata(doc),
	}
	f.logger.Debug("page fetched",
		zap.String("url", rawURL),
		zap.Int("links", len(result.Links)),
	)
	return result, nil
}

var _ crawler.Fetcher = (*Fetcher)(nil)
