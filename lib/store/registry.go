package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

var (
	registry map[string]Factory = map[string]Factory{}
	regLock  sync.RWMutex
)

// Factory builds a store backend from its JSON parameters.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

func Register(name string, impl Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = impl
}

func Get(name string) (Factory, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

func Methods() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for method := range registry {
		result = append(result, method)
	}
	sort.Strings(result)
	return result
}

// Build looks up the named backend, validates its parameters and builds it.
func Build(ctx context.Context, backend string, config json.RawMessage) (Interface, error) {
	fac, ok := Get(backend)
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q, known backends: %v", ErrBadConfig, backend, Methods())
	}

	if err := fac.Valid(config); err != nil {
		return nil, err
	}

	return fac.Build(ctx, config)
}
