package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairScout/internal/config"
	"pairScout/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:          "pairscout",
		Short:        "Uniswap V2 new pair watcher",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-file", "", "optional rotating log file")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the factory and track admitted pairs",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "websocket RPC URL")
	watchCmd.Flags().String("factory", config.DefaultFactory, "Uniswap V2 factory address")
	watchCmd.Flags().String("reference-asset", config.DefaultReferenceAsset, "reference asset every tracked pair quotes against")
	watchCmd.Flags().Uint("reference-decimals", 18, "reference asset decimals")
	watchCmd.Flags().String("reference-pair", config.DefaultReferencePair, "USD/reference pair feeding the reference price")
	watchCmd.Flags().Uint("usd-decimals", 6, "USD asset decimals")
	watchCmd.Flags().Bool("usd-is-token0", true, "USD asset is token0 of the reference pair")
	watchCmd.Flags().String("min-reference-liquidity", "1000000000000000000", "minimum reference reserve in raw units")
	watchCmd.Flags().String("max-concentration-pct", "90", "reject pairs holding at least this share of token0 supply")
	watchCmd.Flags().String("store", config.StoreJSONL, "record store (jsonl, postgres, memory)")
	watchCmd.Flags().String("store-dir", "./data", "jsonl store directory")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	watchCmd.Flags().Bool("notify-enabled", false, "send Telegram announcements")
	watchCmd.Flags().String("telegram-token", "", "Telegram bot token")
	watchCmd.Flags().Int64("telegram-chat-id", 0, "Telegram chat id")
	watchCmd.Flags().String("explorer-url", "https://etherscan.io", "block explorer base URL")
	watchCmd.Flags().String("redis-addr", "", "redis address for the price board, empty disables it")
	watchCmd.Flags().String("redis-password", "", "redis password")
	watchCmd.Flags().Int("redis-db", 0, "redis database")
	watchCmd.Flags().String("metrics-addr", ":9090", "metrics listen address, empty disables it")
	watchCmd.Flags().StringSlice("lockers", nil, "LP locker addresses (comma-separated)")
	watchCmd.Flags().Duration("resubscribe-backoff", 500*time.Millisecond, "initial resubscribe backoff")
	watchCmd.Flags().Duration("resubscribe-max-backoff", 30*time.Second, "maximum resubscribe backoff")
	watchCmd.Flags().Int("dedupe-window", 1024, "recent logs remembered per feed")

	root.AddCommand(watchCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Print the current reference price",
		RunE:  runPrice,
	}

	priceCmd.Flags().String("rpc", "", "RPC URL")
	priceCmd.Flags().String("reference-pair", config.DefaultReferencePair, "USD/reference pair")
	priceCmd.Flags().Uint("reference-decimals", 18, "reference asset decimals")
	priceCmd.Flags().Uint("usd-decimals", 6, "USD asset decimals")
	priceCmd.Flags().Bool("usd-is-token0", true, "USD asset is token0 of the reference pair")

	root.AddCommand(priceCmd)

	pairsCmd := &cobra.Command{
		Use:   "pairs",
		Short: "List persisted tracked pairs",
		RunE:  runPairs,
	}

	pairsCmd.Flags().String("store", config.StoreJSONL, "record store (jsonl, postgres)")
	pairsCmd.Flags().String("store-dir", "./data", "jsonl store directory")
	pairsCmd.Flags().String("pg-dsn", "", "Postgres DSN")

	root.AddCommand(pairsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(cfgFile, envFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
