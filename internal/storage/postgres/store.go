// Package postgres persists pairs and derived records in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairScout/internal/model"
	"pairScout/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for tracked pairs and their events.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// NewStore connects, verifies the connection and applies the schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// StorePair inserts a pair. Re-storing an existing pair is a no-op.
func (s *Store) StorePair(ctx context.Context, pair model.TrackedPair) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracked_pairs (
			pair_address, id,
			token0_address, token0_symbol, token0_decimals, token0_supply,
			token1_address, token1_symbol, token1_decimals, created_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::numeric, $7, $8, $9, $10)
		ON CONFLICT (pair_address) DO NOTHING
	`,
		pair.Address,
		pair.ID,
		pair.Token0.Address,
		pair.Token0.Symbol,
		int16(pair.Token0.Decimals),
		pair.Token0.TotalSupply,
		pair.Token1.Address,
		pair.Token1.Symbol,
		int16(pair.Token1.Decimals),
		pair.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pair: %w", err)
	}
	return nil
}

// FetchPairs lists every stored pair in admission order.
func (s *Store) FetchPairs(ctx context.Context) ([]model.TrackedPair, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pair_address, id,
			token0_address, token0_symbol, token0_decimals, COALESCE(token0_supply::text, ''),
			token1_address, token1_symbol, token1_decimals, created_at
		FROM tracked_pairs
		ORDER BY created_at, pair_address
	`)
	if err != nil {
		return nil, fmt.Errorf("query pairs: %w", err)
	}
	defer rows.Close()

	var pairs []model.TrackedPair
	for rows.Next() {
		var (
			pair      model.TrackedPair
			decimals0 int16
			decimals1 int16
		)
		if err := rows.Scan(
			&pair.Address, &pair.ID,
			&pair.Token0.Address, &pair.Token0.Symbol, &decimals0, &pair.Token0.TotalSupply,
			&pair.Token1.Address, &pair.Token1.Symbol, &decimals1, &pair.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pair.Token0.Decimals = uint8(decimals0)
		pair.Token1.Decimals = uint8(decimals1)
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pairs: %w", err)
	}
	return pairs, nil
}

// StoreSwap inserts a swap record; a redelivered log is ignored.
func (s *Store) StoreSwap(ctx context.Context, r model.SwapRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swaps (
			id, pair_address, ticker, sender, recipient,
			amount0_in, amount1_in, amount0_out, amount1_out,
			price_usd, price_ref, block_number, tx_hash, log_index, observed_at
		) VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11::numeric,$12,$13,$14,$15)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		r.ID,
		r.Pair,
		r.Ticker,
		r.Sender,
		r.To,
		r.Amounts.In0,
		r.Amounts.In1,
		r.Amounts.Out0,
		r.Amounts.Out1,
		r.Price.USD,
		r.Price.Ref,
		int64(r.Log.BlockNumber),
		r.Log.TxHash,
		int64(r.Log.LogIndex),
		r.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

func (s *Store) StoreMint(ctx context.Context, r model.LiquidityRecord) error {
	return s.insertLiquidity(ctx, r)
}

func (s *Store) StoreBurn(ctx context.Context, r model.LiquidityRecord) error {
	return s.insertLiquidity(ctx, r)
}

// StoreBatch writes several liquidity records in one round trip.
func (s *Store) StoreBatch(ctx context.Context, records []model.LiquidityRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		queueLiquidity(batch, r)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert %s batch: %w", records[0].Kind, err)
		}
	}
	return nil
}

func (s *Store) insertLiquidity(ctx context.Context, r model.LiquidityRecord) error {
	return s.StoreBatch(ctx, []model.LiquidityRecord{r})
}

func queueLiquidity(batch *pgx.Batch, r model.LiquidityRecord) {
	batch.Queue(`
		INSERT INTO liquidity_events (
			id, kind, pair_address, sender, recipient, amount0, amount1,
			block_number, tx_hash, log_index, observed_at
		) VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6::numeric,$7::numeric,$8,$9,$10,$11)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		r.ID,
		string(r.Kind),
		r.Pair,
		r.Sender,
		r.To,
		r.Amount.Token0,
		r.Amount.Token1,
		int64(r.Log.BlockNumber),
		r.Log.TxHash,
		int64(r.Log.LogIndex),
		r.ObservedAt,
	)
}
