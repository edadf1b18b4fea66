package draft

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/langerlad/bulk-ip-app/internal/security"
)

// EncryptedStore seals draft text before it reaches a shared backing store.
type EncryptedStore struct {
	Store
	cipher *security.Cipher
}

func NewEncryptedStore(inner Store, c *security.Cipher) *EncryptedStore {
	return &EncryptedStore{Store: inner, cipher: c}
}

func (s *EncryptedStore) Load(ctx context.Context, key string) (string, bool, error) {
	value, found, err := s.Store.Load(ctx, key)
	if err != nil || !found {
		return value, found, err
	}

	text, plain, err := s.cipher.Decrypt(value)
	if err != nil {
		return "", false, fmt.Errorf("draft: %w", err)
	}
	if plain {
		log.Debug("Loaded draft stored before encryption was enabled")
	}
	return text, true, nil
}

func (s *EncryptedStore) Save(ctx context.Context, key, text string) error {
	sealed, err := s.cipher.Encrypt(text)
	if err != nil {
		return fmt.Errorf("draft: %w", err)
	}
	return s.Store.Save(ctx, key, sealed)
}

func (s *EncryptedStore) Unwrap() Store {
	return s.Store
}

// SQLBacked returns the SQL store beneath s, if any.
func SQLBacked(s Store) (*SQLStore, bool) {
	for {
		switch store := s.(type) {
		case *SQLStore:
			return store, true
		case interface{ Unwrap() Store }:
			s = store.Unwrap()
		default:
			return nil, false
		}
	}
}
