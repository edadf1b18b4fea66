package draft

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/langerlad/bulk-ip-app/internal/config"
	"github.com/langerlad/bulk-ip-app/internal/database"
	"github.com/langerlad/bulk-ip-app/internal/security"
)

// KeyPrefix names the draft slot. One slot exists per browser session.
const KeyPrefix = "ip_checker_ips"

// Store keeps the unsent address list of a session. Saves overwrite
// unconditionally.
type Store interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, text string) error
	Clear(ctx context.Context, key string) error
	Close() error
}

// Key derives the storage key of a session's draft slot. The session id is
// hashed so raw ids never reach the backing store.
func Key(sessionID string) string {
	sum := blake2b.Sum256([]byte(sessionID))
	return KeyPrefix + ":" + hex.EncodeToString(sum[:16])
}

// Open builds the store selected by cfg. Persistent stores are wrapped in
// an EncryptedStore when an encryption key is configured.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	store, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Draft.EncryptionKey == "" || cfg.Draft.Store == config.DraftStoreMemory || cfg.Draft.Store == "" {
		return store, nil
	}

	c, err := security.NewCipher(cfg.Draft.EncryptionKey)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("draft: %w", err)
	}
	return NewEncryptedStore(store, c), nil
}

func openBackend(ctx context.Context, cfg config.Config) (Store, error) {
	ttl := cfg.Session.TTL

	switch cfg.Draft.Store {
	case "", config.DraftStoreMemory:
		return NewMemoryStore(ttl), nil

	case config.DraftStoreRedis:
		return DialRedis(ctx, cfg.Draft.RedisURL, ttl)

	case config.DraftStoreSQLite:
		if err := ensureSQLiteDir(cfg.Draft.SQLitePath); err != nil {
			return nil, err
		}
		db, err := database.SetupDB(
			database.WithDialector(database.SQLiteDialector(cfg.Draft.SQLitePath)),
			database.WithMigrations(&Entry{}),
		)
		if err != nil {
			return nil, fmt.Errorf("draft: %w", err)
		}
		return NewSQLStore(db, true), nil

	case config.DraftStorePostgres:
		db, err := database.SetupDB(
			database.WithDialector(database.PostgresDialector(cfg.Draft.DatabaseURL)),
			database.WithMigrations(&Entry{}),
		)
		if err != nil {
			return nil, fmt.Errorf("draft: %w", err)
		}
		return NewSQLStore(db, true), nil

	default:
		return nil, fmt.Errorf("draft: unknown store %q", cfg.Draft.Store)
	}
}

func ensureSQLiteDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("draft: create sqlite dir: %w", err)
	}
	return nil
}

func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
