// Package digits draws spoken digit sequences such as "seven three five".
package digits

import (
	"fmt"
	"io"
	"strings"

	"github.com/TecharoHQ/vox/lib/challenge"
)

// Words are the spoken forms of 0 through 9.
var Words = [10]string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

const maxLength = 16

//nolint:gochecknoinits
func init() {
	challenge.Register("digits", &Impl{DefaultLength: 4})
	challenge.Register("digits-short", &Impl{DefaultLength: 3})
}

type Impl struct {
	DefaultLength int
}

func (i *Impl) length(opts challenge.Options) int {
	if opts.Length != 0 {
		return opts.Length
	}
	return i.DefaultLength
}

func (i *Impl) Valid(opts challenge.Options) error {
	if n := i.length(opts); n < 1 || n > maxLength {
		return fmt.Errorf("%w: digit count must be between 1 and %d, got %d", challenge.ErrBadConfig, maxLength, n)
	}

	if len(opts.Pool) != 0 {
		return fmt.Errorf("%w: digit sources don't take a phrase pool", challenge.ErrBadConfig)
	}

	return nil
}

func (i *Impl) Phrase(rnd io.Reader, opts challenge.Options) (string, error) {
	if err := i.Valid(opts); err != nil {
		return "", err
	}

	n := i.length(opts)
	result := make([]string, n)
	for j := range n {
		d, err := challenge.Intn(rnd, len(Words))
		if err != nil {
			return "", err
		}
		result[j] = Words[d]
	}

	return strings.Join(result, " "), nil
}
