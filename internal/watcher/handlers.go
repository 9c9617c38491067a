package watcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"pairScout/internal/model"
	"pairScout/internal/processor"
)

const (
	eventReferenceSwap = "reference_swap"
	eventPairCreated   = "pair_created"
	eventSwap          = "swap"
	eventMint          = "mint"
	eventBurn          = "burn"
)

func (w *Watcher) handleReferenceSwap(ctx context.Context, log types.Log) (string, error) {
	ev, err := w.decoder.DecodeSwap(log)
	if err != nil {
		return eventReferenceSwap, fmt.Errorf("decode reference swap: %w", err)
	}
	price, updated, err := w.oracle.Observe(ev)
	if err != nil {
		w.metrics.OracleInvariant()
		return eventReferenceSwap, err
	}
	if updated {
		w.logger.Debug("reference price updated", zap.String("price", price.String()), zap.Uint64("block", log.BlockNumber))
	}
	return eventReferenceSwap, nil
}

func (w *Watcher) handlePairCreated(ctx context.Context, log types.Log) (string, error) {
	ev, err := w.decoder.DecodePairCreated(log)
	if err != nil {
		return eventPairCreated, fmt.Errorf("decode pair created: %w", err)
	}
	w.metrics.Discovered()

	adm, rej, err := w.filter.Admit(ctx, ev)
	if err != nil {
		return eventPairCreated, fmt.Errorf("admit pair %s (%s/%s): %w", ev.Pair, ev.Token0, ev.Token1, err)
	}
	if rej != nil {
		w.metrics.Rejected(string(rej.Reason))
		w.logger.Info("pair rejected",
			zap.String("pair", ev.Pair),
			zap.String("token0", ev.Token0),
			zap.String("token1", ev.Token1),
			zap.String("reason", string(rej.Reason)),
			zap.Int("check", rej.Check),
			zap.String("detail", rej.Message),
		)
		return eventPairCreated, nil
	}

	pair := adm.Pair
	if err := w.store.StorePair(ctx, pair); err != nil {
		return eventPairCreated, fmt.Errorf("store pair %s: %w", pair.Address, err)
	}
	w.Attach(pair)
	w.metrics.Admitted()
	w.logger.Info("pair tracked",
		zap.String("pair", pair.Address),
		zap.String("ticker", pair.Ticker()),
		zap.String("token0", pair.Token0.Address),
		zap.String("token1", pair.Token1.Address),
	)

	return eventPairCreated, w.announce(ctx, adm.Pair, adm.Reserves)
}

func (w *Watcher) announce(ctx context.Context, pair model.TrackedPair, reserves model.ReserveSnapshot) error {
	var lock *processor.LockInfo
	if len(w.cfg.Lockers) > 0 {
		info, err := processor.LockedLiquidity(ctx, w.reader, common.HexToAddress(pair.Address), w.cfg.Lockers)
		if err != nil {
			w.logger.Warn("locked liquidity unavailable", zap.String("pair", pair.Address), zap.Error(err))
		} else {
			lock = info
		}
	}
	a, err := w.processor.Announce(pair, reserves, w.prices.Price(), lock)
	if err != nil {
		return fmt.Errorf("announce pair %s: %w", pair.Address, err)
	}
	if err := w.notifier.NotifyPair(ctx, a); err != nil {
		return fmt.Errorf("notify pair %s: %w", pair.Address, err)
	}
	return nil
}

func (w *Watcher) pairHandler(pair model.TrackedPair) handlerFunc {
	return func(ctx context.Context, log types.Log) (string, error) {
		decoded, err := w.decoder.DecodePairEvent(log)
		if err != nil {
			return "", fmt.Errorf("decode pair event: %w", err)
		}
		switch ev := decoded.(type) {
		case *model.SwapEvent:
			record, err := w.processor.ComputeSwap(pair, *ev, w.prices.Price())
			if err != nil {
				return eventSwap, err
			}
			if err := w.store.StoreSwap(ctx, record); err != nil {
				return eventSwap, fmt.Errorf("store swap: %w", err)
			}
			if err := w.board.PublishSwap(ctx, record); err != nil {
				return eventSwap, fmt.Errorf("publish swap: %w", err)
			}
			return eventSwap, nil
		case *model.MintEvent:
			if err := w.store.StoreMint(ctx, w.processor.ComputeMint(pair, *ev)); err != nil {
				return eventMint, fmt.Errorf("store mint: %w", err)
			}
			return eventMint, nil
		case *model.BurnEvent:
			if err := w.store.StoreBurn(ctx, w.processor.ComputeBurn(pair, *ev)); err != nil {
				return eventBurn, fmt.Errorf("store burn: %w", err)
			}
			return eventBurn, nil
		default:
			return "", fmt.Errorf("unexpected pair event %T", decoded)
		}
	}
}
