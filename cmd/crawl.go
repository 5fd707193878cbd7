package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waterbase/linkcrawler/internal/api"
	"github.com/waterbase/linkcrawler/internal/config"
	"github.com/waterbase/linkcrawler/internal/crawler"
	"github.com/waterbase/linkcrawler/internal/fetcher/headless"
	"github.com/waterbase/linkcrawler/internal/fetcher/static"
	"github.com/waterbase/linkcrawler/internal/store"
	"github.com/waterbase/linkcrawler/internal/store/postgres"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Starts a crawl of the configured base URL",
		Long: `Walks the configured site breadth-first, persisting a classified record
for every discovered link. SIGINT/SIGTERM stops dispatching, waits for
in-flight fetches and flushes the pending batch before exiting.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	linkStore, err := postgres.NewLinkStore(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init link store: %w", err)
	}
	defer linkStore.Close()

	batcher := store.NewBatcher(linkStore, cfg.DB.BatchSize, logger)
	defer func() {
		if cerr := batcher.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Error("final batch close", zap.Error(cerr))
		}
	}()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}

	robots := crawler.NewRobotsPolicy(httpClient, cfg.Crawler.UserAgent, logger)
	robots.Load(ctx, cfg.Crawler.BaseURL)
	for _, prefix := range cfg.Crawler.DisallowedPaths {
		robots.AddDisallowedPath(prefix)
	}

	normalizer, err := crawler.NewNormalizer(cfg.Crawler.BaseURL, cfg.Crawler.StripParams)
	if err != nil {
		return fmt.Errorf("init normalizer: %w", err)
	}

	classifier := crawler.NewTypeClassifier(httpClient, cfg.Crawler.UserAgent, cfg.Crawler.HeadFallback, logger)

	fetcher, closeFetcher, err := buildFetcher()
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	defer closeFetcher()

	scheduler, err := crawler.NewScheduler(
		crawler.SchedulerConfig{
			BaseURL:     cfg.Crawler.BaseURL,
			MaxDepth:    cfg.Crawler.MaxDepth,
			Concurrency: cfg.Crawler.Concurrency,
		},
		fetcher,
		classifier,
		robots,
		normalizer,
		batcher,
		crawler.NewRateLimiter(cfg.Crawler.PerHostRPS, 1),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	shutdownServer := startServer(ctx, scheduler)
	defer shutdownServer()

	seeds := []string{cfg.Crawler.BaseURL}
	if cfg.Crawler.SeedFromSitemap {
		seeder := crawler.NewSitemapSeeder(httpClient, cfg.Crawler.UserAgent, logger)
		seeds = append(seeds, seeder.Seeds(ctx, cfg.Crawler.BaseURL)...)
	}

	if err := scheduler.Run(ctx, seeds...); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("crawl command finished")
	return nil
}

func buildFetcher() (crawler.Fetcher, func(), error) {
	switch cfg.Crawler.Fetcher {
	case config.FetcherStatic:
		f := static.New(static.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.HTTPTimeout(),
		}, logger)
		return f, func() {}, nil
	default:
		f, err := headless.New(headless.Config{
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
			Settle:            cfg.Settle(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}

// startServer exposes /healthz, /metrics and /progress while the crawl runs.
// It returns a shutdown func; with no configured port it is a no-op.
func startServer(ctx context.Context, scheduler *crawler.Scheduler) func() {
	if cfg.Server.Port <= 0 {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(scheduler, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("progress server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("progress server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("progress server shutdown", zap.Error(err))
		}
	}
}
