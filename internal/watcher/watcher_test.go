package watcher

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pairScout/internal/board"
	"pairScout/internal/dex/dextest"
	"pairScout/internal/model"
	"pairScout/internal/storage"
)

func swapsOf(store storage.Store) []model.SwapRecord {
	switch s := store.(type) {
	case *storage.MemoryStore:
		return s.Swaps()
	case *flakyStore:
		return s.Swaps()
	}
	return nil
}

func waitSwaps(t *testing.T, store storage.Store, n int) []model.SwapRecord {
	t.Helper()
	require.Eventually(t, func() bool { return len(swapsOf(store)) >= n }, waitFor, 5*time.Millisecond,
		"expected %d stored swaps", n)
	return swapsOf(store)
}

func TestAdmittedPairIsStoredAnnouncedAndTracked(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store)

	h.source.emit(t, factoryAddr, dextest.PairCreated(factoryAddr, tokenAddr, wethAddr, pairAddr, meta(1, 1, 0)))
	h.source.waitSubscribed(t, pairAddr, 1)

	pairs, err := store.FetchPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.Equal(t, "PEPE/WETH", pairs[0].Ticker())
	require.Len(t, h.watcher.Pairs(), 1)

	require.Eventually(t, func() bool { return len(h.notifier.announcements()) == 1 }, waitFor, 5*time.Millisecond)
	a := h.notifier.announcements()[0]
	require.Equal(t, "10.00", a.ConcentrationPct)
	require.Equal(t, "2000.000000", a.ReferenceUSD)
	require.Equal(t, "0.000200000000000000", a.PriceUSD)

	h.source.emit(t, pairAddr, sellSwap(meta(2, 2, 0)))
	h.source.emit(t, pairAddr, dextest.Mint(pairAddr, traderAddr, big.NewInt(1), big.NewInt(2), meta(2, 3, 0)))
	h.source.emit(t, pairAddr, dextest.Burn(pairAddr, traderAddr, traderAddr, big.NewInt(3), big.NewInt(4), meta(2, 4, 0)))

	swaps := waitSwaps(t, store, 1)
	require.Equal(t, "0.000200000000000000", swaps[0].Price.USD)
	require.Equal(t, "0.000000100000000000", swaps[0].Price.Ref)
	require.Eventually(t, func() bool { return len(store.Mints()) == 1 && len(store.Burns()) == 1 }, waitFor, 5*time.Millisecond)
	require.Equal(t, "0x2222222222222222222222222222222222222222", store.Burns()[0].To)
}

func TestRejectedPairIsNotTracked(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store)

	// Reference asset as token0.
	h.source.emit(t, factoryAddr, dextest.PairCreated(factoryAddr, wethAddr, tokenAddr, pairAddr, meta(1, 1, 0)))
	// A later admissible pair proves the first event was fully handled.
	other := dextest.PairCreated(factoryAddr, tokenAddr, wethAddr, pairAddr, meta(1, 1, 1))
	h.source.emit(t, factoryAddr, other)
	h.source.waitSubscribed(t, pairAddr, 1)

	pairs, err := store.FetchPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
}

func TestReferenceSwapsMoveThePriceUsedForPairs(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store)
	require.True(t, h.watcher.Attach(trackedPair()))
	h.source.waitSubscribed(t, pairAddr, 1)

	// 2100 USDC in for 1 WETH out: 2100 - 2000*0.0031 = 2093.8
	h.source.emit(t, refPairAddr, dextest.Swap(refPairAddr, traderAddr, traderAddr,
		units(2100, 6), big.NewInt(0), big.NewInt(0), units(1, 18), meta(5, 9, 0)))
	require.Eventually(t, func() bool {
		return h.watcher.prices.Price().Equal(decimal.RequireFromString("2093.8"))
	}, waitFor, 5*time.Millisecond)

	h.source.emit(t, pairAddr, sellSwap(meta(6, 1, 0)))
	swaps := waitSwaps(t, store, 1)
	require.Equal(t, "0.000209380000000000", swaps[0].Price.USD)
}

func TestPersistenceFailureDoesNotStopLaterSwaps(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failSwaps: 1}
	h := newHarness(t, store)
	require.True(t, h.watcher.Attach(trackedPair()))

	h.source.emit(t, pairAddr, sellSwap(meta(10, 1, 0)))
	h.source.emit(t, pairAddr, sellSwap(meta(10, 1, 1)))

	swaps := waitSwaps(t, store, 1)
	require.Len(t, swaps, 1)
	require.Equal(t, uint64(1), swaps[0].Log.LogIndex)
}

func TestHandlerPanicDoesNotStopFeed(t *testing.T) {
	store := storage.NewMemoryStore()
	b := &panickyBoard{}
	h := newHarness(t, store, func(d *Deps) { d.Board = b })
	require.True(t, h.watcher.Attach(trackedPair()))

	h.source.emit(t, pairAddr, sellSwap(meta(10, 1, 0)))
	h.source.emit(t, pairAddr, sellSwap(meta(10, 1, 1)))

	require.Eventually(t, func() bool { return b.count() == 1 }, waitFor, 5*time.Millisecond)
	require.Len(t, store.Swaps(), 2)
}

func TestInvariantViolationDoesNotStopFeed(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store)
	require.True(t, h.watcher.Attach(trackedPair()))

	// No input leg.
	h.source.emit(t, pairAddr, dextest.Swap(pairAddr, traderAddr, traderAddr,
		big.NewInt(0), big.NewInt(0), big.NewInt(5), big.NewInt(5), meta(10, 1, 0)))
	h.source.emit(t, pairAddr, sellSwap(meta(10, 1, 1)))

	swaps := waitSwaps(t, store, 1)
	require.Len(t, swaps, 1)
}

func TestDuplicateAndRemovedLogsAreSkipped(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store)
	require.True(t, h.watcher.Attach(trackedPair()))

	first := sellSwap(meta(10, 1, 0))
	removed := sellSwap(meta(10, 2, 0))
	removed.Removed = true

	h.source.emit(t, pairAddr, first)
	h.source.emit(t, pairAddr, first)
	h.source.emit(t, pairAddr, removed)
	h.source.emit(t, pairAddr, sellSwap(meta(11, 3, 0)))

	swaps := waitSwaps(t, store, 2)
	require.Len(t, swaps, 2)
	require.Equal(t, uint64(11), swaps[1].Log.BlockNumber)
}

func TestAttachIsIdempotent(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore())

	require.True(t, h.watcher.Attach(trackedPair()))
	require.False(t, h.watcher.Attach(trackedPair()))
	h.source.waitSubscribed(t, pairAddr, 1)

	require.Len(t, h.watcher.Pairs(), 1)
	require.Equal(t, 1, h.source.subscriptions(pairAddr))
}

func TestFeedResubscribesAfterDrop(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store)
	require.True(t, h.watcher.Attach(trackedPair()))
	h.source.waitSubscribed(t, pairAddr, 1)

	h.source.mu.Lock()
	h.source.failNext[pairAddr] = 2
	h.source.mu.Unlock()
	h.source.drop(pairAddr)
	h.source.waitSubscribed(t, pairAddr, 2)

	h.source.emit(t, pairAddr, sellSwap(meta(12, 1, 0)))
	waitSwaps(t, store, 1)
}

// A pair restored from storage must behave exactly like one admitted live.
func TestRestoredPairMatchesLiveAdmission(t *testing.T) {
	live := storage.NewMemoryStore()
	h := newHarness(t, live)
	h.source.emit(t, factoryAddr, dextest.PairCreated(factoryAddr, tokenAddr, wethAddr, pairAddr, meta(1, 1, 0)))
	h.source.waitSubscribed(t, pairAddr, 1)
	swap := sellSwap(meta(2, 2, 0))
	h.source.emit(t, pairAddr, swap)
	liveSwaps := waitSwaps(t, live, 1)
	h.stop(t)

	stored, err := live.FetchPairs(context.Background())
	require.NoError(t, err)

	restoredStore := storage.NewMemoryStore()
	for _, pair := range stored {
		require.NoError(t, restoredStore.StorePair(context.Background(), pair))
	}
	r := newHarness(t, restoredStore)
	r.source.waitSubscribed(t, pairAddr, 1)
	require.Equal(t, stored, r.watcher.Pairs())

	r.source.emit(t, pairAddr, swap)
	restoredSwaps := waitSwaps(t, restoredStore, 1)

	a, b := liveSwaps[0], restoredSwaps[0]
	require.Equal(t, a.Pair, b.Pair)
	require.Equal(t, a.Ticker, b.Ticker)
	require.Equal(t, a.Amounts, b.Amounts)
	require.Equal(t, a.Price, b.Price)
	require.Equal(t, a.Log, b.Log)
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Config{}, Deps{Logger: zap.NewNop()})
	require.Error(t, err)
}

func TestRunFailsWhenReferencePriceUnavailable(t *testing.T) {
	deps := harnessDeps(t)
	deps.Reader = brokenReader{}
	w, err := New(Config{Factory: factoryAddr, ReferencePair: refPairAddr}, deps)
	require.NoError(t, err)
	require.Error(t, w.Run(context.Background()))
}

var _ board.Board = (*panickyBoard)(nil)
