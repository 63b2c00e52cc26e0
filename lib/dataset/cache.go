package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/vox/lib/features"
	"github.com/TecharoHQ/vox/lib/store"
	"github.com/vmihailenco/msgpack/v5"
)

// CacheTTL is how long an extracted vector is reused.
const CacheTTL = 30 * 24 * time.Hour

// Cache remembers extracted vectors keyed by audio hash and extractor
// configuration, so retraining skips unchanged recordings.
type Cache struct {
	st store.Interface
}

func NewCache(st store.Interface) *Cache {
	return &Cache{st: st}
}

func cacheKey(audioHash string, cfg features.Config) string {
	return "features:" + cfg.Hash() + ":" + audioHash
}

// Get returns a cached vector. A miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, audioHash string, cfg features.Config) (features.Vector, bool, error) {
	data, err := c.st.Get(ctx, cacheKey(audioHash, cfg))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	var v features.Vector
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("%w: %w", store.ErrCantDecode, err)
	}

	if len(v) != cfg.Dimension() {
		return nil, false, nil
	}

	return v, true, nil
}

func (c *Cache) Put(ctx context.Context, audioHash string, cfg features.Config, v features.Vector) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrCantEncode, err)
	}

	return c.st.Set(ctx, cacheKey(audioHash, cfg), data, CacheTTL)
}
