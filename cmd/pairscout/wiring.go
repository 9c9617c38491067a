package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pairScout/internal/board"
	"pairScout/internal/config"
	"pairScout/internal/notify"
	"pairScout/internal/storage"
	"pairScout/internal/storage/postgres"
)

func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, nil, err
	}
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	case config.StoreMemory:
		return storage.NewMemoryStore(), func() {}, nil
	default:
		return storage.NewJsonlStore(cfg.StoreDir), func() {}, nil
	}
}

func newNotifier(cfg config.Config, logger *zap.Logger) (notify.Notifier, error) {
	links := notify.DefaultLinks
	if cfg.ExplorerURL != "" {
		links.Explorer = cfg.ExplorerURL
	}
	if !cfg.NotifyEnabled {
		return notify.NewLogNotifier(logger, links), nil
	}
	notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, links)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return notifier, nil
}

func newBoard(ctx context.Context, cfg config.Config) (board.Board, func(), error) {
	if cfg.RedisAddr == "" {
		return board.Nop{}, func() {}, nil
	}
	b, err := board.NewRedisBoard(ctx, board.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}
