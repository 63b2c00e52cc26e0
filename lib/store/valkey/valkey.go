package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/vox/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

type Store struct {
	rdb    *valkey.Client
	prefix string
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Delete relies on DEL returning the number of removed keys, which makes the
// claim atomic across every Vox instance using the same database.
func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("can't delete from valkey: %w", err)
	}

	switch n {
	case 0:
		return fmt.Errorf("%w: %d key(s) deleted", store.ErrNotFound, n)
	default:
		return nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
		}

		return nil, fmt.Errorf("can't fetch from valkey: %w", err)
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if _, err := s.rdb.Set(ctx, s.key(key), value, expiry).Result(); err != nil {
		return fmt.Errorf("can't set %q in valkey: %w", key, err)
	}

	return nil
}
