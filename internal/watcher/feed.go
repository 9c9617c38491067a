package watcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"pairScout/internal/admission"
	"pairScout/internal/pricing"
	"pairScout/internal/processor"
)

const logBuffer = 64

// LogSource streams contract logs. *chain.Client satisfies it.
type LogSource interface {
	SubscribeLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// handlerFunc handles one log and reports the event kind it saw.
type handlerFunc func(ctx context.Context, log types.Log) (string, error)

// feed is one log subscription processed sequentially by one goroutine.
type feed struct {
	name   string
	query  ethereum.FilterQuery
	handle handlerFunc
	fields []zap.Field
	seen   *lru.Cache[string, struct{}]
}

func (w *Watcher) newFeed(name string, query ethereum.FilterQuery, handle handlerFunc, fields ...zap.Field) (*feed, error) {
	seen, err := lru.New[string, struct{}](w.cfg.DedupeWindow)
	if err != nil {
		return nil, fmt.Errorf("create dedupe window: %w", err)
	}
	return &feed{
		name:   name,
		query:  query,
		handle: handle,
		fields: append([]zap.Field{zap.String("feed", name)}, fields...),
		seen:   seen,
	}, nil
}

// with returns the feed's context fields followed by extra.
func (f *feed) with(extra ...zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(f.fields)+len(extra))
	out = append(out, f.fields...)
	return append(out, extra...)
}

type subscription struct {
	sub  ethereum.Subscription
	logs chan types.Log
}

func (w *Watcher) subscribe(ctx context.Context, f *feed) (subscription, error) {
	logs := make(chan types.Log, logBuffer)
	sub, err := w.source.SubscribeLogs(ctx, f.query, logs)
	if err != nil {
		return subscription{}, fmt.Errorf("subscribe %s logs: %w", f.name, err)
	}
	return subscription{sub: sub, logs: logs}, nil
}

// run consumes the feed until ctx ends, resubscribing with backoff whenever
// the subscription fails. current may be empty, in which case run subscribes
// first.
func (w *Watcher) run(ctx context.Context, f *feed, current subscription) {
	attempt := 0
	for {
		if current.sub == nil {
			var err error
			current, err = w.subscribe(ctx, f)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("subscribe failed", f.with(zap.Int("attempt", attempt), zap.Error(err))...)
				if !w.backoff.wait(ctx, attempt) {
					return
				}
				attempt++
				continue
			}
			if attempt > 0 {
				w.logger.Info("resubscribed", f.fields...)
			}
			attempt = 0
		}

		err := w.consume(ctx, f, current)
		current.sub.Unsubscribe()
		current = subscription{}
		if ctx.Err() != nil {
			return
		}
		w.metrics.Resubscribed(f.name)
		w.logger.Warn("subscription dropped", f.with(zap.Error(err))...)
		if !w.backoff.wait(ctx, attempt) {
			return
		}
		attempt++
	}
}

func (w *Watcher) consume(ctx context.Context, f *feed, s subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case log := <-s.logs:
			w.dispatch(ctx, f, log)
		}
	}
}

// dispatch is the failure boundary of one event: errors and panics are
// logged and counted, never propagated.
func (w *Watcher) dispatch(ctx context.Context, f *feed, log types.Log) {
	if log.Removed {
		w.metrics.EventSkipped("removed")
		w.logger.Debug("skip removed log", f.with(logFields(log)...)...)
		return
	}
	key := log.TxHash.Hex() + ":" + strconv.FormatUint(uint64(log.Index), 10)
	if f.seen.Contains(key) {
		w.metrics.EventSkipped("duplicate")
		w.logger.Debug("skip duplicate log", f.with(logFields(log)...)...)
		return
	}
	f.seen.Add(key, struct{}{})

	var (
		pc   panics.Catcher
		kind string
		err  error
	)
	pc.Try(func() {
		kind, err = f.handle(ctx, log)
	})
	if recovered := pc.Recovered(); recovered != nil {
		w.metrics.EventFailed(orUnknown(kind), "panic")
		w.logger.Error("event handler panicked", f.with(append(logFields(log),
			zap.String("event", orUnknown(kind)),
			zap.String("kind", "panic"),
			zap.Error(recovered.AsError()),
		)...)...)
		return
	}
	if err != nil {
		w.report(f, log, kind, err)
		return
	}
	w.metrics.EventProcessed(kind)
}

func (w *Watcher) report(f *feed, log types.Log, kind string, err error) {
	kind = orUnknown(kind)
	fields := f.with(append(logFields(log), zap.String("event", kind), zap.Error(err))...)
	if isInvariant(err) {
		w.metrics.EventFailed(kind, "invariant")
		w.logger.Error("event handling failed", append(fields, zap.String("kind", "invariant"))...)
		return
	}
	w.metrics.EventFailed(kind, "transient")
	w.logger.Warn("event handling failed", append(fields, zap.String("kind", "transient"))...)
}

func isInvariant(err error) bool {
	return processor.IsInvariant(err) ||
		errors.Is(err, pricing.ErrZeroDenominator) ||
		errors.Is(err, admission.ErrZeroTotalSupply)
}

func logFields(log types.Log) []zap.Field {
	return []zap.Field{
		zap.Uint64("block", log.BlockNumber),
		zap.String("tx", log.TxHash.Hex()),
		zap.Uint("log_index", log.Index),
	}
}

func orUnknown(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}
