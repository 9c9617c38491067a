// Package watcher runs the reference price feed, the factory discovery feed
// and one feed per tracked pair.
package watcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"pairScout/internal/admission"
	"pairScout/internal/board"
	"pairScout/internal/dex"
	"pairScout/internal/metrics"
	"pairScout/internal/model"
	"pairScout/internal/notify"
	"pairScout/internal/oracle"
	"pairScout/internal/processor"
	"pairScout/internal/storage"
)

const defaultDedupeWindow = 1024

// Config holds the watched contracts and feed tuning.
type Config struct {
	Factory       common.Address
	ReferencePair common.Address
	// Lockers hold locked LP tokens; their balances feed the locked share.
	Lockers               []common.Address
	ResubscribeBackoff    time.Duration
	ResubscribeMaxBackoff time.Duration
	// DedupeWindow is the number of recent logs remembered per feed.
	DedupeWindow int
}

// ChainReader reads the state the watcher needs outside admission.
// *dex.Reader satisfies it.
type ChainReader interface {
	oracle.ReservesReader
	processor.LPReader
}

// Admitter decides whether a new pair is tracked. *admission.Filter satisfies it.
type Admitter interface {
	Admit(ctx context.Context, ev model.PairCreatedEvent) (admission.Admission, *admission.Rejection, error)
}

// Deps are the watcher's collaborators. Board, Notifier, Metrics and Logger
// are optional.
type Deps struct {
	Source    LogSource
	Reader    ChainReader
	Decoder   *dex.Decoder
	Oracle    *oracle.Oracle
	Filter    Admitter
	Processor *processor.Processor
	Store     storage.Store
	Notifier  notify.Notifier
	Board     board.Board
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Watcher owns the registry of tracked pairs and their feeds.
type Watcher struct {
	cfg       Config
	source    LogSource
	reader    ChainReader
	decoder   *dex.Decoder
	oracle    *oracle.Oracle
	prices    oracle.Reader
	filter    Admitter
	processor *processor.Processor
	store     storage.Store
	notifier  notify.Notifier
	board     board.Board
	metrics   *metrics.Metrics
	logger    *zap.Logger
	backoff   backoff

	wg conc.WaitGroup

	mu      sync.RWMutex
	runCtx  context.Context
	tracked map[common.Address]*trackedFeed
}

// trackedFeed is a registry entry. started flips once its goroutine runs.
type trackedFeed struct {
	pair    model.TrackedPair
	started bool
}

// New validates deps and builds a Watcher.
func New(cfg Config, deps Deps) (*Watcher, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("log source is nil")
	case deps.Reader == nil:
		return nil, fmt.Errorf("chain reader is nil")
	case deps.Decoder == nil:
		return nil, fmt.Errorf("decoder is nil")
	case deps.Oracle == nil:
		return nil, fmt.Errorf("oracle is nil")
	case deps.Filter == nil:
		return nil, fmt.Errorf("admission filter is nil")
	case deps.Processor == nil:
		return nil, fmt.Errorf("processor is nil")
	case deps.Store == nil:
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = defaultDedupeWindow
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(deps.Logger, notify.DefaultLinks)
	}
	if deps.Board == nil {
		deps.Board = board.Nop{}
	}

	return &Watcher{
		cfg:       cfg,
		source:    deps.Source,
		reader:    deps.Reader,
		decoder:   deps.Decoder,
		oracle:    deps.Oracle,
		prices:    deps.Oracle,
		filter:    deps.Filter,
		processor: deps.Processor,
		store:     deps.Store,
		notifier:  deps.Notifier,
		board:     deps.Board,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		backoff:   newBackoff(cfg.ResubscribeBackoff, cfg.ResubscribeMaxBackoff),
		tracked:   make(map[common.Address]*trackedFeed),
	}, nil
}

// Run seeds the oracle, starts the reference and factory feeds, restores
// persisted pairs and blocks until ctx ends and every feed has exited.
// It only fails on startup errors.
func (w *Watcher) Run(ctx context.Context) error {
	price, err := w.oracle.Load(ctx, w.reader)
	if err != nil {
		return fmt.Errorf("init reference price: %w", err)
	}
	w.logger.Info("reference price initialized",
		zap.String("pair", w.cfg.ReferencePair.Hex()),
		zap.String("price", price.String()),
	)

	reference, err := w.newFeed("reference", ethereum.FilterQuery{
		Addresses: []common.Address{w.cfg.ReferencePair},
		Topics:    [][]common.Hash{{w.decoder.SwapTopic()}},
	}, w.handleReferenceSwap, zap.String("pair", w.cfg.ReferencePair.Hex()))
	if err != nil {
		return err
	}
	factory, err := w.newFeed("factory", ethereum.FilterQuery{
		Addresses: []common.Address{w.cfg.Factory},
		Topics:    [][]common.Hash{{w.decoder.PairCreatedTopic()}},
	}, w.handlePairCreated, zap.String("factory", w.cfg.Factory.Hex()))
	if err != nil {
		return err
	}

	refSub, err := w.subscribe(ctx, reference)
	if err != nil {
		return err
	}
	factorySub, err := w.subscribe(ctx, factory)
	if err != nil {
		refSub.sub.Unsubscribe()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.wg.Go(func() { w.run(runCtx, reference, refSub) })
	w.wg.Go(func() { w.run(runCtx, factory, factorySub) })

	pairs, err := w.store.FetchPairs(runCtx)
	if err != nil {
		cancel()
		w.wg.Wait()
		return fmt.Errorf("restore pairs: %w", err)
	}
	restored := 0
	for _, pair := range pairs {
		if w.Attach(pair) {
			restored++
		}
	}
	w.logger.Info("restored pairs", zap.Int("stored", len(pairs)), zap.Int("attached", restored))

	w.start(runCtx)
	w.logger.Info("watcher started",
		zap.String("factory", w.cfg.Factory.Hex()),
		zap.Int("tracked", len(w.Pairs())),
	)

	<-runCtx.Done()
	if recovered := w.wg.WaitAndRecover(); recovered != nil {
		return fmt.Errorf("feed crashed: %w", recovered.AsError())
	}
	w.logger.Info("watcher stopped")
	return nil
}

// start enables feed startup and launches feeds attached before Run.
func (w *Watcher) start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runCtx = ctx
	for addr, entry := range w.tracked {
		if !entry.started {
			w.launch(ctx, addr, entry)
		}
	}
}

// Attach registers a pair and starts its feed. It returns false when the pair
// is already tracked. Pairs attached before Run start when Run does.
func (w *Watcher) Attach(pair model.TrackedPair) bool {
	addr := common.HexToAddress(pair.Address)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.tracked[addr]; ok {
		return false
	}
	entry := &trackedFeed{pair: pair}
	w.tracked[addr] = entry
	w.metrics.SetTrackedPairs(len(w.tracked))
	if w.runCtx != nil {
		w.launch(w.runCtx, addr, entry)
	}
	return true
}

// launch must be called with w.mu held.
func (w *Watcher) launch(ctx context.Context, addr common.Address, entry *trackedFeed) {
	pair := entry.pair
	f, err := w.newFeed("pair", ethereum.FilterQuery{
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{w.decoder.PairTopics()},
	}, w.pairHandler(pair),
		zap.String("pair", pair.Address),
		zap.String("ticker", pair.Ticker()),
		zap.String("token0", pair.Token0.Address),
		zap.String("token1", pair.Token1.Address),
	)
	if err != nil {
		w.logger.Error("create pair feed", zap.String("pair", pair.Address), zap.Error(err))
		return
	}
	entry.started = true
	w.wg.Go(func() { w.run(ctx, f, subscription{}) })
}

// Pairs returns a snapshot of the tracked pairs ordered by address.
func (w *Watcher) Pairs() []model.TrackedPair {
	w.mu.RLock()
	out := make([]model.TrackedPair, 0, len(w.tracked))
	for _, entry := range w.tracked {
		out = append(out, entry.pair)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
