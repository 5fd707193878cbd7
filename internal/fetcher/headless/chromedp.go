// Package headless implements the page fetcher on top of a headless browser.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/waterbase/linkcrawler/internal/crawler"
	"github.com/waterbase/linkcrawler/internal/extract"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// Settle is how long to wait after the body is ready for late network
	// activity to quiesce before the DOM is captured.
	Settle time.Duration
}

// Fetcher implements crawler.Fetcher using chromedp. A single exec
// allocator (one browser process) is shared across the crawl; every Fetch
// opens its own tab context and closes it on all exit paths.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New starts the shared browser allocator.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close tears down the browser allocator.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates a fresh tab to the URL, waits for the page to settle and
// extracts outbound links plus metadata from the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	defer tabCancel()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancel()

	// Abandon the tab when the crawl itself is canceled.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	html, finalURL, err := f.render(tabCtx, rawURL)
	if err != nil {
		return crawler.FetchResult{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	if finalURL == "" {
		finalURL = rawURL
	}

	doc, err := extract.Parse(html)
	if err != nil {
		return crawler.FetchResult{}, fmt.Errorf("parse rendered dom: %w", err)
	}

	result := crawler.FetchResult{
		URL:   finalURL,
		Links: extract.Links(doc, finalURL),
		Meta:  extract.Metadata(doc),
	}
	f.logger.Debug("page rendered",
		zap.String("url", rawURL),
		zap.String("final_url", finalURL),
		zap.Int("links", len(result.Links)),
	)
	return result, nil
}

func (f *Fetcher) render(ctx context.Context, rawURL string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.cfg.Settle),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

var _ crawler.Fetcher = (*Fetcher)(nil)
