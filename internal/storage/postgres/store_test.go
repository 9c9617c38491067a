package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pairScout/internal/model"
)

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"tracked_pairs", "swaps", "liquidity_events"} {
		require.True(t, strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

// Runs against a live database when PAIRSCOUT_TEST_PG_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("PAIRSCOUT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PAIRSCOUT_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	suffix := time.Now().Format("150405.000000")
	pair := model.TrackedPair{
		ID:        "pair-" + suffix,
		Address:   "0xpair" + suffix,
		Token0:    model.TokenInfo{Address: "0xaaaa", Symbol: "PEPE", Decimals: 9, TotalSupply: "1000000"},
		Token1:    model.TokenInfo{Address: "0xweth", Symbol: "WETH", Decimals: 18},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.StorePair(ctx, pair))
	require.NoError(t, store.StorePair(ctx, pair))

	pairs, err := store.FetchPairs(ctx)
	require.NoError(t, err)
	var found []model.TrackedPair
	for _, p := range pairs {
		if p.Address == pair.Address {
			found = append(found, p)
		}
	}
	require.Len(t, found, 1)
	require.Equal(t, pair.Token0, found[0].Token0)
	require.True(t, pair.CreatedAt.Equal(found[0].CreatedAt))

	log := model.LogRef{BlockNumber: 1, TxHash: "0xtx" + suffix, LogIndex: 0}
	swap := model.SwapRecord{
		ID: "swap-" + suffix, Pair: pair.Address, Ticker: pair.Ticker(),
		Amounts: model.SwapAmounts{In0: "1", In1: "0", Out0: "0", Out1: "2"},
		Price:   model.SwapPrice{USD: "0.5", Ref: "0.0002"},
		Log:     log, ObservedAt: time.Now().UTC(),
	}
	require.NoError(t, store.StoreSwap(ctx, swap))
	swap.ID = "swap-dup-" + suffix
	require.NoError(t, store.StoreSwap(ctx, swap))

	log.LogIndex = 1
	require.NoError(t, store.StoreMint(ctx, model.LiquidityRecord{
		ID: "mint-" + suffix, Kind: model.LiquidityMint, Pair: pair.Address,
		Amount: model.LiquidityAmounts{Token0: "1", Token1: "1"}, Log: log, ObservedAt: time.Now().UTC(),
	}))
}
