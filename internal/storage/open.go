package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vasiliy-maslov/grocery-storefront/internal/config"
	"github.com/vasiliy-maslov/grocery-storefront/internal/db"
)

const redisPrefix = "storefront"

// Open builds the store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageBolt:
		return NewBoltStore(cfg.Storage.BoltPath)
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := NewRedisStore(client, redisPrefix)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("storage: redis ping %s: %w", cfg.Redis.Addr, err)
		}
		return store, nil
	case config.StoragePostgres:
		conn, err := db.Connect(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return NewPostgresStore(conn), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Storage.Driver)
	}
}
