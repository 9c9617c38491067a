package watcher

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pairScout/internal/admission"
	"pairScout/internal/dex"
	"pairScout/internal/dex/dextest"
	"pairScout/internal/model"
	"pairScout/internal/oracle"
	"pairScout/internal/processor"
	"pairScout/internal/storage"
)

var (
	factoryAddr = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	refPairAddr = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	wethAddr    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdcAddr    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	tokenAddr   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	pairAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	traderAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

const waitFor = 3 * time.Second

// fakeSub mimics an ethereum.Subscription whose error channel closes on
// Unsubscribe.
type fakeSub struct {
	err  chan error
	once sync.Once
}

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() { close(s.err) })
}

func (s *fakeSub) Err() <-chan error { return s.err }

type activeSub struct {
	sub *fakeSub
	ch  chan<- types.Log
}

// fakeSource hands out one subscription per SubscribeLogs call, keyed by the
// first filtered address.
type fakeSource struct {
	mu       sync.Mutex
	active   map[common.Address]activeSub
	counts   map[common.Address]int
	failNext map[common.Address]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		active:   make(map[common.Address]activeSub),
		counts:   make(map[common.Address]int),
		failNext: make(map[common.Address]int),
	}
}

func (s *fakeSource) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := q.Addresses[0]
	if s.failNext[addr] > 0 {
		s.failNext[addr]--
		return nil, errors.New("dial refused")
	}
	sub := &fakeSub{err: make(chan error, 1)}
	s.active[addr] = activeSub{sub: sub, ch: ch}
	s.counts[addr]++
	return sub, nil
}

func (s *fakeSource) subscriptions(addr common.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[addr]
}

func (s *fakeSource) waitSubscribed(t *testing.T, addr common.Address, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.subscriptions(addr) >= n }, waitFor, 5*time.Millisecond,
		"no subscription #%d for %s", n, addr.Hex())
}

func (s *fakeSource) emit(t *testing.T, addr common.Address, log types.Log) {
	t.Helper()
	s.waitSubscribed(t, addr, 1)
	s.mu.Lock()
	ch := s.active[addr].ch
	s.mu.Unlock()
	select {
	case ch <- log:
	case <-time.After(waitFor):
		t.Fatalf("emit to %s blocked", addr.Hex())
	}
}

func (s *fakeSource) drop(addr common.Address) {
	s.mu.Lock()
	sub := s.active[addr].sub
	s.mu.Unlock()
	sub.err <- errors.New("connection reset")
}

// flakyStore fails StoreSwap for the first failSwaps calls.
type flakyStore struct {
	*storage.MemoryStore
	mu        sync.Mutex
	failSwaps int
}

func (s *flakyStore) StoreSwap(ctx context.Context, record model.SwapRecord) error {
	s.mu.Lock()
	if s.failSwaps > 0 {
		s.failSwaps--
		s.mu.Unlock()
		return errors.New("firestore unavailable")
	}
	s.mu.Unlock()
	return s.MemoryStore.StoreSwap(ctx, record)
}

// panickyBoard panics on the first publish.
type panickyBoard struct {
	mu        sync.Mutex
	published []model.SwapRecord
	panicked  bool
}

func (b *panickyBoard) PublishSwap(ctx context.Context, record model.SwapRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.panicked {
		b.panicked = true
		panic("board exploded")
	}
	b.published = append(b.published, record)
	return nil
}

func (b *panickyBoard) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Announcement
}

func (n *recordingNotifier) NotifyPair(ctx context.Context, a model.Announcement) error {
	n.mu.Lock()
	n.sent = append(n.sent, a)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) announcements() []model.Announcement {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Announcement(nil), n.sent...)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func units(v, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), pow10(decimals))
}

// chainFixture registers a 2000 USDC/WETH reference pair and an admissible
// PEPE/WETH pair.
func chainFixture() *dextest.Caller {
	caller := dextest.NewCaller()
	caller.SetReserves(refPairAddr, units(2_000_000, 6), units(1000, 18))
	caller.SetReserves(pairAddr, units(100_000_000, 9), units(10, 18))
	caller.SetTotalSupply(tokenAddr, units(1_000_000_000, 9))
	caller.SetToken(tokenAddr, "PEPE", 9)
	caller.SetToken(wethAddr, "WETH", 18)
	return caller
}

type harness struct {
	watcher  *Watcher
	source   *fakeSource
	store    storage.Store
	notifier *recordingNotifier
	cancel   context.CancelFunc
	done     chan error
}

type harnessOption func(*Deps)

type brokenReader struct{}

func (brokenReader) Reserves(ctx context.Context, pair common.Address) (model.ReserveSnapshot, error) {
	return model.ReserveSnapshot{}, errors.New("rpc unavailable")
}

func (brokenReader) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	return nil, errors.New("rpc unavailable")
}

func (brokenReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return nil, errors.New("rpc unavailable")
}

func harnessDeps(t *testing.T) Deps {
	t.Helper()
	caller := chainFixture()
	reader := dex.NewReader(caller, zap.NewNop())
	decoder, err := dex.NewDecoder()
	require.NoError(t, err)

	return Deps{
		Source:  newFakeSource(),
		Reader:  reader,
		Decoder: decoder,
		Oracle: oracle.New(oracle.Config{
			Pair: refPairAddr, USDIsToken0: true, USDDecimals: 6, RefDecimals: 18,
		}, nil),
		Filter: admission.NewFilter(admission.Config{
			Reference:             wethAddr,
			ReferenceDecimals:     18,
			MinReferenceLiquidity: units(1, 18),
			MaxConcentrationPct:   decimal.NewFromInt(50),
		}, reader, zap.NewNop()),
		Processor: processor.New(),
		Store:     storage.NewMemoryStore(),
		Notifier:  &recordingNotifier{},
		Logger:    zap.NewNop(),
	}
}

func newHarness(t *testing.T, store storage.Store, opts ...harnessOption) *harness {
	t.Helper()
	deps := harnessDeps(t)
	deps.Store = store
	for _, opt := range opts {
		opt(&deps)
	}
	source := deps.Source.(*fakeSource)
	notifier := deps.Notifier.(*recordingNotifier)

	w, err := New(Config{
		Factory:               factoryAddr,
		ReferencePair:         refPairAddr,
		ResubscribeBackoff:    time.Millisecond,
		ResubscribeMaxBackoff: 5 * time.Millisecond,
	}, deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{watcher: w, source: source, store: store, notifier: notifier, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(func() { h.stop(t) })

	source.waitSubscribed(t, refPairAddr, 1)
	source.waitSubscribed(t, factoryAddr, 1)
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("watcher did not stop")
	}
}

func trackedPair() model.TrackedPair {
	return model.TrackedPair{
		ID:      "restored",
		Address: pairAddr.Hex(),
		Token0:  model.TokenInfo{Address: tokenAddr.Hex(), Symbol: "PEPE", Decimals: 9, TotalSupply: units(1_000_000_000, 9).String()},
		Token1:  model.TokenInfo{Address: wethAddr.Hex(), Symbol: "WETH", Decimals: 18},
	}
}

func meta(block uint64, tx byte, index uint) dextest.Meta {
	return dextest.Meta{Block: block, Tx: common.BytesToHash([]byte{tx}), Index: index}
}

// sellSwap sells 1,000,000 PEPE for 0.1 WETH.
func sellSwap(m dextest.Meta) types.Log {
	return dextest.Swap(pairAddr, traderAddr, traderAddr, units(1_000_000, 9), big.NewInt(0), big.NewInt(0), units(1, 17), m)
}
