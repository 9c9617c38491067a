package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairScout/internal/admission"
	"pairScout/internal/chain"
	"pairScout/internal/dex"
	"pairScout/internal/metrics"
	"pairScout/internal/oracle"
	"pairScout/internal/processor"
	"pairScout/internal/watcher"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := chain.CheckSubscribable(cfg.RPCURL); err != nil {
		return err
	}
	watchCfg, err := cfg.Watcher()
	if err != nil {
		return err
	}
	oracleCfg, err := cfg.Oracle()
	if err != nil {
		return err
	}
	admissionCfg, err := cfg.Admission()
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

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	priceBoard, closeBoard, err := newBoard(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBoard()

	decoder, err := dex.NewDecoder()
	if err != nil {
		return err
	}

	m := metrics.New("pairscout")
	reader := dex.NewReader(chainClient, logger)

	w, err := watcher.New(watchCfg, watcher.Deps{
		Source:    chainClient,
		Reader:    reader,
		Decoder:   decoder,
		Oracle:    oracle.New(oracleCfg, m),
		Filter:    admission.NewFilter(admissionCfg, reader, logger),
		Processor: processor.New(),
		Store:     store,
		Notifier:  notifier,
		Board:     priceBoard,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var wg conc.WaitGroup
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(&wg, cfg.MetricsAddr, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
			wg.Wait()
		}()
	}

	logger.Info("pairscout start",
		zap.String("chain_id", chainID.String()),
		zap.String("factory", watchCfg.Factory.Hex()),
		zap.String("reference_asset", admissionCfg.Reference.Hex()),
		zap.String("reference_pair", oracleCfg.Pair.Hex()),
		zap.String("min_reference_liquidity", admissionCfg.MinReferenceLiquidity.String()),
		zap.String("max_concentration_pct", admissionCfg.MaxConcentrationPct.String()),
		zap.String("store", cfg.Store),
		zap.Bool("notify_enabled", cfg.NotifyEnabled),
		zap.Bool("board_enabled", cfg.RedisAddr != ""),
		zap.Int("lockers", len(watchCfg.Lockers)),
	)

	if err := w.Run(ctx); err != nil {
		return err
	}
	logger.Info("pairscout stopped", zap.Int("tracked", len(w.Pairs())))
	return nil
}

func serveMetrics(wg *conc.WaitGroup, addr string, m *metrics.Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	wg.Go(func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.String("addr", addr), zap.Error(err))
		}
	})
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}
