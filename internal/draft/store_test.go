package draft

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/langerlad/bulk-ip-app/internal/config"
	"github.com/langerlad/bulk-ip-app/internal/database"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key := Key(t.Name())

	if _, ok, err := store.Load(ctx, key); err != nil || ok {
		t.Fatalf("empty store Load = ok %v err %v", ok, err)
	}

	if err := store.Save(ctx, key, "1.1.1.1\n"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Save(ctx, key, "1.1.1.1\n8.8.8.8"); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	text, ok, err := store.Load(ctx, key)
	if err != nil || !ok || text != "1.1.1.1\n8.8.8.8" {
		t.Fatalf("Load = %q ok %v err %v", text, ok, err)
	}

	other := Key(t.Name() + "-other")
	if _, ok, _ := store.Load(ctx, other); ok {
		t.Fatal("draft leaked into another session's slot")
	}

	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, ok, _ := store.Load(ctx, key); ok {
		t.Fatal("draft still present after Clear")
	}
	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("Clear on empty slot returned error: %v", err)
	}
}

func TestKey(t *testing.T) {
	key := Key("session-a")
	if !strings.HasPrefix(key, KeyPrefix+":") {
		t.Fatalf("key %q lacks prefix", key)
	}
	if strings.Contains(key, "session-a") {
		t.Fatal("raw session id must not appear in the key")
	}
	if key != Key("session-a") || key == Key("session-b") {
		t.Fatal("keys must be stable per session and distinct across sessions")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	ctx := context.Background()

	if err := store.Save(ctx, "k", "1.1.1.1"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok, _ := store.Load(ctx, "k"); ok {
		t.Fatal("expected draft to expire")
	}
}

func setupSQLStore(t *testing.T) *SQLStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := database.SetupDB(
		database.WithDialector(database.SQLiteDialector(dsn)),
		database.WithMigrations(&Entry{}),
	)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	store := NewSQLStore(db, true)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStore(t *testing.T) {
	exerciseStore(t, setupSQLStore(t))
}

func TestSQLStorePurgeStale(t *testing.T) {
	store := setupSQLStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "old", "1.1.1.1"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.db.Model(&Entry{}).Where("slot = ?", "old").
		Update("updated_at", time.Now().Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("backdate entry: %v", err)
	}
	if err := store.Save(ctx, "fresh", "8.8.8.8"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	removed, err := store.PurgeStale(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeStale returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}
	if _, ok, _ := store.Load(ctx, "fresh"); !ok {
		t.Fatal("fresh entry should survive purge")
	}
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("BULKIP_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("BULKIP_TEST_REDIS_URL not set")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, NewRedisStore(client, time.Minute))

	dialed, err := DialRedis(context.Background(), redisURL, time.Minute)
	if err != nil {
		t.Fatalf("DialRedis returned error: %v", err)
	}
	t.Cleanup(func() { _ = dialed.Close() })
	exerciseStore(t, dialed)
}

func TestDialRedisRejectsBadURL(t *testing.T) {
	if _, err := DialRedis(context.Background(), "not a url", time.Minute); err == nil {
		t.Fatal("DialRedis with a malformed url should fail")
	}
}

func TestOpen(t *testing.T) {
	store, err := Open(context.Background(), config.Config{})
	if err != nil {
		t.Fatalf("Open with defaults returned error: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("default store is %T, want *MemoryStore", store)
	}

	sqliteCfg := config.Config{}
	sqliteCfg.Draft.Store = config.DraftStoreSQLite
	sqliteCfg.Draft.SQLitePath = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqlStore, err := Open(context.Background(), sqliteCfg)
	if err != nil {
		t.Fatalf("Open sqlite returned error: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if _, ok := sqlStore.(*SQLStore); !ok {
		t.Fatalf("sqlite store is %T, want *SQLStore", sqlStore)
	}

	unknown := config.Config{}
	unknown.Draft.Store = "etcd"
	if _, err := Open(context.Background(), unknown); err == nil {
		t.Fatal("Open with unknown store should fail")
	}
}
