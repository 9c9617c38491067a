package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runPairs(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	pairs, err := store.FetchPairs(ctx)
	if err != nil {
		return fmt.Errorf("fetch pairs: %w", err)
	}
	logger.Debug("pairs loaded", zap.String("store", cfg.Store), zap.Int("count", len(pairs)))

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAIR\tTICKER\tTOKEN0\tCREATED")
	for _, pair := range pairs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			pair.Address,
			pair.Ticker(),
			pair.Token0.Address,
			pair.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		)
	}
	return tw.Flush()
}
