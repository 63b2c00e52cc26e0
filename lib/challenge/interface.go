package challenge

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"sort"
	"sync"
)

var (
	registry map[string]Impl = map[string]Impl{}
	regLock  sync.RWMutex
)

func Register(name string, impl Impl) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = impl
}

func Get(name string) (Impl, bool) {
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

// Options tunes a phrase source.
type Options struct {
	// Pool overrides the built-in phrase list of pool based sources.
	Pool []string `json:"pool,omitempty"`

	// Length is the number of words for sequence based sources. Zero means
	// the source's default.
	Length int `json:"length,omitempty"`
}

// Impl is a phrase source.
type Impl interface {
	// Phrase draws a new expected phrase. All randomness must come from rnd.
	Phrase(rnd io.Reader, opts Options) (string, error)

	// Valid checks that opts make sense for this source.
	Valid(opts Options) error
}

// Intn returns a uniform random integer in [0, n) drawn from rnd.
func Intn(rnd io.Reader, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: can't draw from an empty range", ErrBadConfig)
	}

	if rnd == nil {
		rnd = rand.Reader
	}

	v, err := rand.Int(rnd, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("challenge: can't read randomness: %w", err)
	}

	return int(v.Int64()), nil
}
