package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waterbase/linkcrawler/internal/store/postgres"
)

func newLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Reads crawled links back out of the database",
	}
	cmd.AddCommand(newLinksPendingCmd(), newLinksSampleCmd())
	return cmd
}

func newLinksPendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Lists allowed links that have no scraped content yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			linkStore, err := openLinkStore(cmd)
			if err != nil {
				return err
			}
			defer linkStore.Close()

			records, err := linkStore.FetchWithoutContent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("fetch pending links: %w", err)
			}
			return printJSON(records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of links to return")
	return cmd
}

func newLinksSampleCmd() *cobra.Command {
	var (
		group       string
		size        int
		allowedOnly bool
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Samples up to N random links per group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			linkStore, err := openLinkStore(cmd)
			if err != nil {
				return err
			}
			defer linkStore.Close()

			filters := map[string]any{}
			if allowedOnly {
				filters["allowed"] = true
			}
			groups, err := linkStore.SampleByGroup(cmd.Context(), group, size, filters)
			if err != nil {
				return fmt.Errorf("sample links: %w", err)
			}
			return printJSON(groups)
		},
	}
	cmd.Flags().StringVar(&group, "group", "main_endpoint", "column to group by")
	cmd.Flags().IntVar(&size, "size", 5, "sample size per group")
	cmd.Flags().BoolVar(&allowedOnly, "allowed", false, "only sample robots-allowed links")
	return cmd
}

func openLinkStore(cmd *cobra.Command) (*postgres.LinkStore, error) {
	linkStore, err := postgres.NewLinkStore(cmd.Context(), postgres.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init link store: %w", err)
	}
	return linkStore, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
