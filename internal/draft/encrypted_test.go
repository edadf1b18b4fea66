package draft

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/langerlad/bulk-ip-app/internal/config"
	"github.com/langerlad/bulk-ip-app/internal/security"
)

func TestEncryptedStore(t *testing.T) {
	c, err := security.NewCipher("draft-test-key")
	if err != nil {
		t.Fatalf("NewCipher returned error: %v", err)
	}
	inner := setupSQLStore(t)
	exerciseStore(t, NewEncryptedStore(inner, c))
}

func TestEncryptedStoreSealsAtRest(t *testing.T) {
	ctx := context.Background()
	c, err := security.NewCipher("draft-test-key")
	if err != nil {
		t.Fatalf("NewCipher returned error: %v", err)
	}
	inner := setupSQLStore(t)
	store := NewEncryptedStore(inner, c)

	key := Key("session-a")
	if err := store.Save(ctx, key, "192.0.2.10"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	raw, found, err := inner.Load(ctx, key)
	if err != nil || !found {
		t.Fatalf("inner Load = %q %v %v", raw, found, err)
	}
	if !security.IsEncrypted(raw) || strings.Contains(raw, "192.0.2.10") {
		t.Fatalf("draft stored in the clear: %q", raw)
	}

	if err := inner.Save(ctx, key, "198.51.100.1"); err != nil {
		t.Fatalf("inner Save returned error: %v", err)
	}
	text, found, err := store.Load(ctx, key)
	if err != nil || !found || text != "198.51.100.1" {
		t.Fatalf("plain draft Load = %q %v %v", text, found, err)
	}
}

func TestOpenWrapsPersistentStores(t *testing.T) {
	cfg := config.Config{}
	cfg.Draft.Store = config.DraftStoreSQLite
	cfg.Draft.SQLitePath = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.Draft.EncryptionKey = "draft-test-key"

	store, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, ok := store.(*EncryptedStore); !ok {
		t.Fatalf("store is %T, want *EncryptedStore", store)
	}
	if _, ok := SQLBacked(store); !ok {
		t.Fatal("SQLBacked should find the wrapped SQL store")
	}

	memory := config.Config{}
	memory.Draft.EncryptionKey = "draft-test-key"
	plain, err := Open(context.Background(), memory)
	if err != nil {
		t.Fatalf("Open memory returned error: %v", err)
	}
	if _, ok := plain.(*MemoryStore); !ok {
		t.Fatalf("memory store is %T, want *MemoryStore", plain)
	}
}
