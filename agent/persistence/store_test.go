package persistence

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 CheckpointStore 契约测试
// =============================================================================

func runCheckpointContract(t *testing.T, store CheckpointStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))
	})

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SaveLoadOverwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "thread-1", []byte(`{"v":1}`)))
		require.NoError(t, store.Save(ctx, "thread-1", []byte(`{"v":2}`)))

		data, err := store.Load(ctx, "thread-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(data))
	})

	t.Run("EmptyKey", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, "", []byte("x")), ErrInvalidInput)
	})

	t.Run("ListByPrefix", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "task:b", []byte("{}")))
		require.NoError(t, store.Save(ctx, "task:a", []byte("{}")))
		require.NoError(t, store.Save(ctx, "other", []byte("{}")))

		keys, err := store.List(ctx, "task:")
		require.NoError(t, err)
		assert.Equal(t, []string{"task:a", "task:b"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "task:a"))
		require.NoError(t, store.Delete(ctx, "task:a"), "deleting a missing key is not an error")
		_, err := store.Load(ctx, "task:a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, StoreConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	config := DefaultStoreConfig()
	config.Type = StoreTypeRedis
	config.Redis.Host = mr.Host()
	config.Redis.Port = port
	return mr, config
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestMemoryCheckpointStore(t *testing.T) {
	store := NewMemoryCheckpointStore()
	runCheckpointContract(t, store)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Ping(context.Background()), ErrStoreClosed)
	assert.ErrorIs(t, store.Save(context.Background(), "k", nil), ErrStoreClosed)
}

func TestMemoryCheckpointStore_CopiesBlobs(t *testing.T) {
	store := NewMemoryCheckpointStore()
	blob := []byte("abc")
	require.NoError(t, store.Save(context.Background(), "k", blob))
	blob[0] = 'z'

	got, err := store.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileCheckpointStore(t *testing.T) {
	config := DefaultStoreConfig()
	config.Type = StoreTypeFile
	config.BaseDir = t.TempDir()

	store, err := NewFileCheckpointStore(config)
	require.NoError(t, err)
	defer store.Close()

	runCheckpointContract(t, store)

	// 键中的路径分隔符被转义
	require.NoError(t, store.Save(context.Background(), "../escape/key", []byte("{}")))
	keys, err := store.List(context.Background(), "../")
	require.NoError(t, err)
	assert.Equal(t, []string{"../escape/key"}, keys)
}

func TestRedisCheckpointStore(t *testing.T) {
	_, config := setupMiniredis(t)

	store, err := NewRedisCheckpointStore(config)
	require.NoError(t, err)
	defer store.Close()

	runCheckpointContract(t, store)
}

func TestRedisCheckpointStore_ConnectFailure(t *testing.T) {
	config := DefaultStoreConfig()
	config.Redis.Host = "127.0.0.1"
	config.Redis.Port = 1

	_, err := NewRedisCheckpointStore(config)
	assert.Error(t, err)
}

func TestSQLCheckpointStore(t *testing.T) {
	store, err := NewSQLCheckpointStore(setupSQLite(t))
	require.NoError(t, err)

	runCheckpointContract(t, store)

	_, err = NewSQLCheckpointStore(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// =============================================================================
// 🧪 MessageLog 测试
// =============================================================================

func entry(id, from, to string, at time.Time) LogEntry {
	return LogEntry{ID: id, SenderID: from, RecipientID: to, Type: "request", Priority: "normal", CreatedAt: at}
}

func runMessageLogContract(t *testing.T, log MessageLog) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, log.Append(ctx, entry("m1", "a", "b", base)))
	require.NoError(t, log.Append(ctx, entry("m2", "b", "c", base.Add(time.Minute))))
	require.NoError(t, log.Append(ctx, entry("m3", "a", "c", base.Add(2*time.Hour))))
	assert.ErrorIs(t, log.Append(ctx, LogEntry{}), ErrInvalidInput)

	got, err := log.List(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m3", got[1].ID)

	got, err = log.List(ctx, "c", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m3", got[0].ID)

	removed, err := log.Prune(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Positive(t, removed)

	got, err = log.List(ctx, "b", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryMessageLog(t *testing.T) {
	log := NewMemoryMessageLog(0)
	runMessageLogContract(t, log)
}

func TestMemoryMessageLog_Cap(t *testing.T) {
	log := NewMemoryMessageLog(2)
	now := time.Now()
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, log.Append(context.Background(), entry(id, "a", "b", now)))
	}
	got, err := log.List(context.Background(), "a", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
}

func TestRedisMessageLog(t *testing.T) {
	_, config := setupMiniredis(t)

	log, err := NewRedisMessageLog(config)
	require.NoError(t, err)
	defer log.Close()

	runMessageLogContract(t, log)
}

// =============================================================================
// 🏭 工厂测试
// =============================================================================

func TestFactory(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		store, err := NewCheckpointStore(DefaultStoreConfig(), nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &MemoryCheckpointStore{}, store)
	})

	t.Run("File", func(t *testing.T) {
		config := DefaultStoreConfig()
		config.Type = StoreTypeFile
		config.BaseDir = t.TempDir()
		store, err := NewCheckpointStore(config, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &FileCheckpointStore{}, store)
	})

	t.Run("SQL", func(t *testing.T) {
		config := DefaultStoreConfig()
		config.Type = StoreTypeSQL
		store, err := NewCheckpointStore(config, setupSQLite(t))
		require.NoError(t, err)
		assert.IsType(t, &SQLCheckpointStore{}, store)
	})

	t.Run("Redis", func(t *testing.T) {
		_, config := setupMiniredis(t)
		store, err := NewCheckpointStore(config, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisCheckpointStore{}, store)

		log, err := NewMessageLog(config)
		require.NoError(t, err)
		defer log.Close()
		assert.IsType(t, &RedisMessageLog{}, log)
	})

	t.Run("Unsupported", func(t *testing.T) {
		config := DefaultStoreConfig()
		config.Type = "etcd"
		_, err := NewCheckpointStore(config, nil)
		assert.Error(t, err)
		_, err = NewMessageLog(config)
		assert.Error(t, err)
	})
}
