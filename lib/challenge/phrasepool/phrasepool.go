// Package phrasepool picks a challenge phrase from a fixed list.
package phrasepool

import (
	"fmt"
	"io"
	"strings"

	"github.com/TecharoHQ/vox/lib/challenge"
)

// Default is used when the policy file doesn't configure a pool.
var Default = []string{
	"the quick brown fox jumps over the lazy dog",
	"a stitch in time saves nine",
	"every cloud has a silver lining",
	"open the window and let the light in",
	"seven green apples on a wooden table",
	"the river runs quietly past the old mill",
	"bright stars shine over the sleeping town",
	"please bring me a cup of warm tea",
}

//nolint:gochecknoinits
func init() {
	challenge.Register("phrase", &Impl{})
}

type Impl struct{}

func pool(opts challenge.Options) []string {
	if len(opts.Pool) != 0 {
		return opts.Pool
	}
	return Default
}

func (Impl) Valid(opts challenge.Options) error {
	if opts.Length != 0 {
		return fmt.Errorf("%w: phrase pools don't take a length", challenge.ErrBadConfig)
	}

	for i, p := range opts.Pool {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: pool entry %d is empty", challenge.ErrBadConfig, i)
		}
	}

	return nil
}

func (i Impl) Phrase(rnd io.Reader, opts challenge.Options) (string, error) {
	if err := i.Valid(opts); err != nil {
		return "", err
	}

	p := pool(opts)
	n, err := challenge.Intn(rnd, len(p))
	if err != nil {
		return "", err
	}

	return strings.Join(strings.Fields(p[n]), " "), nil
}
