// Package board publishes the latest swap price of every tracked pair to a
// live price board.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/go-redis/redis/v8"

	"pairScout/internal/model"
)

const (
	keyPrefix    = "pairscout:price:"
	swapsChannel = "pairscout:swaps"
)

// Board receives every priced swap.
type Board interface {
	PublishSwap(ctx context.Context, record model.SwapRecord) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) PublishSwap(ctx context.Context, record model.SwapRecord) error { return nil }

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// RedisBoard keeps one hash per pair holding its last swap price and fans
// each swap out on a pub/sub channel.
type RedisBoard struct {
	client *redis.Client
}

// NewRedisBoard connects and pings redis.
func NewRedisBoard(ctx context.Context, opts Options) (*RedisBoard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBoard{client: client}, nil
}

// PublishSwap updates the pair hash and publishes the record in one pipeline.
func (b *RedisBoard) PublishSwap(ctx context.Context, record model.SwapRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal swap: %w", err)
	}
	pipe := b.client.Pipeline()
	pipe.HSet(ctx, Key(record.Pair), Fields(record)...)
	pipe.Publish(ctx, swapsChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish swap: %w", err)
	}
	return nil
}

// Latest returns the board entry of a pair.
func (b *RedisBoard) Latest(ctx context.Context, pair string) (map[string]string, error) {
	res, err := b.client.HGetAll(ctx, Key(pair)).Result()
	if err != nil {
		return nil, fmt.Errorf("read board entry: %w", err)
	}
	return res, nil
}

func (b *RedisBoard) Close() error {
	return b.client.Close()
}

// Key is the hash key of a pair entry.
func Key(pair string) string {
	return keyPrefix + strings.ToLower(pair)
}

// Fields flattens a swap record into HSET field/value arguments.
func Fields(record model.SwapRecord) []interface{} {
	observed := record.ObservedAt
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	return []interface{}{
		"ticker", record.Ticker,
		"price_usd", record.Price.USD,
		"price_ref", record.Price.Ref,
		"block", strconv.FormatUint(record.Log.BlockNumber, 10),
		"tx", record.Log.TxHash,
		"updated_at", observed.Format(time.RFC3339Nano),
	}
}
