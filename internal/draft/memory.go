package draft

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

type MemoryStore struct {
	entries *cache.Cache
	ttl     time.Duration
}

// NewMemoryStore keeps drafts in process. Entries idle longer than ttl are
// dropped; ttl <= 0 keeps them until cleared.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	defaultExpiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		defaultExpiration = ttl
		cleanup = ttl / 2
	}

	return &MemoryStore{
		entries: cache.New(defaultExpiration, cleanup),
		ttl:     ttl,
	}
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	value, ok := s.entries.Get(key)
	if !ok {
		return "", false, nil
	}
	text, _ := value.(string)
	return text, true, nil
}

func (s *MemoryStore) Save(_ context.Context, key, text string) error {
	s.entries.SetDefault(key, text)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.entries.Flush()
	return nil
}
