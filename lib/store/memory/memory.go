package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TecharoHQ/vox/decaymap"
	"github.com/TecharoHQ/vox/lib/store"
)

type factory struct{}

func (factory) Build(ctx context.Context, _ json.RawMessage) (store.Interface, error) {
	return New(ctx), nil
}

func (factory) Valid(json.RawMessage) error { return nil }

func init() {
	store.Register("memory", factory{})
}

type impl struct {
	store *decaymap.Impl[string, []byte]
}

func (i *impl) Delete(_ context.Context, key string) error {
	if !i.store.Delete(key) {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	result, ok := i.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return result, nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	// copy so callers can reuse their buffers
	buf := make([]byte, len(value))
	copy(buf, value)
	i.store.Set(key, buf, expiry)
	return nil
}

func (i *impl) cleanupThread(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.store.Cleanup()
		}
	}
}

// New creates a simple in-memory store. Challenges issued by one Vox instance
// can only be answered on the same instance.
func New(ctx context.Context) store.Interface {
	return NewWithClock(ctx, time.Now)
}

// NewWithClock is New with an injectable clock for expiry tests.
func NewWithClock(ctx context.Context, now func() time.Time) store.Interface {
	dm := decaymap.New[string, []byte]()
	dm.Now = now

	result := &impl{
		store: dm,
	}

	go result.cleanupThread(ctx)

	return result
}
