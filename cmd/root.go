// Package cmd defines the CLI commands for the linkcrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waterbase/linkcrawler/internal/config"
	"github.com/waterbase/linkcrawler/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkcrawler",
		Short: "A polite breadth-first site crawler with classified link records.",
		Long: `linkcrawler walks a website breadth-first under robots.txt constraints,
classifies every discovered link and stores deduplicated records in Postgres
for downstream scraping and indexing tools.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded

			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (settings also read from CRAWLER_* env vars)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newLinksCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
