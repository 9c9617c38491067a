package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairScout/internal/chain"
	"pairScout/internal/dex"
	"pairScout/internal/oracle"
	"pairScout/internal/pricing"
)

func runPrice(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	oracleCfg, err := cfg.Oracle()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	block, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	o := oracle.New(oracleCfg, nil)
	price, err := o.Load(ctx, dex.NewReader(chainClient, logger))
	if err != nil {
		return err
	}

	logger.Debug("reference price read",
		zap.String("pair", oracleCfg.Pair.Hex()),
		zap.Uint64("block", block),
	)
	fmt.Fprintln(cmd.OutOrStdout(), pricing.Fixed(price, pricing.ReferencePrecision))
	return nil
}
