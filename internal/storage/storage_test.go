package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/grocery-storefront/internal/config"
	"github.com/vasiliy-maslov/grocery-storefront/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func runStoreContract(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing_key", func(t *testing.T) {
		_, err := store.Get(ctx, "cart-items-missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set_get_overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "cart-items-42", `[{"id":1}]`))
		v, err := store.Get(ctx, "cart-items-42")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":1}]`, v)

		require.NoError(t, store.Set(ctx, "cart-items-42", `[]`))
		v, err = store.Get(ctx, "cart-items-42")
		require.NoError(t, err)
		assert.Equal(t, `[]`, v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "cart-items-guest", `[{"id":"a"}]`))
		require.NoError(t, store.Delete(ctx, "cart-items-guest"))

		_, err := store.Get(ctx, "cart-items-guest")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.NoError(t, store.Delete(ctx, "cart-items-guest"), "deleting a missing key is not an error")
	})

	t.Run("keys_are_isolated", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "cart-items-1", "one"))
		require.NoError(t, store.Set(ctx, "cart-items-2", "two"))

		v1, err := store.Get(ctx, "cart-items-1")
		require.NoError(t, err)
		v2, err := store.Get(ctx, "cart-items-2")
		require.NoError(t, err)
		assert.Equal(t, "one", v1)
		assert.Equal(t, "two", v2)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, storage.NewMemoryStore())
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.db")
	store, err := storage.NewBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.db")
	ctx := context.Background()

	store, err := storage.NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "session", `{"token":"t"}`))
	require.NoError(t, store.Close())

	reopened, err := storage.NewBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	v, err := reopened.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"t"}`, v)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := storage.NewRedisStore(client, "storefront")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Ping(context.Background()))
	runStoreContract(t, store)

	assert.True(t, mr.Exists("storefront:cart-items-1"), "keys are written under the prefix")
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("STOREFRONT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_PG_DSN not set")
	}

	conn, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now())`)
	require.NoError(t, err)
	_, err = conn.Exec("TRUNCATE TABLE kv_entries")
	require.NoError(t, err)

	store := storage.NewPostgresStore(conn)
	t.Cleanup(func() {
		_, _ = conn.Exec("TRUNCATE TABLE kv_entries")
		_ = store.Close()
	})

	runStoreContract(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Driver = config.StorageMemory
		store, err := storage.Open(ctx, cfg)
		require.NoError(t, err)
		assert.IsType(t, &storage.MemoryStore{}, store)
	})

	t.Run("bolt", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.BoltPath = filepath.Join(t.TempDir(), "s.db")
		store, err := storage.Open(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		assert.IsType(t, &storage.BoltStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Storage.Driver = config.StorageRedis
		cfg.Redis.Addr = mr.Addr()
		store, err := storage.Open(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		assert.IsType(t, &storage.RedisStore{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Driver = "floppy"
		_, err := storage.Open(ctx, cfg)
		assert.Error(t, err)
	})
}
