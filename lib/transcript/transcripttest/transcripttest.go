// Package transcripttest has deterministic recognizers for tests.
package transcripttest

import (
	"context"
	"sync/atomic"

	"github.com/TecharoHQ/vox/lib/audio"
)

// Fixed always hears Text, or fails with Err when it is set.
type Fixed struct {
	Text string
	Err  error

	// Block makes Decode wait for its context to end.
	Block bool

	calls atomic.Int64
}

func (f *Fixed) Decode(ctx context.Context, _ *audio.Clip) (string, error) {
	f.calls.Add(1)

	if f.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	if f.Err != nil {
		return "", f.Err
	}

	return f.Text, nil
}

// Calls is how many times Decode ran.
func (f *Fixed) Calls() int64 {
	return f.calls.Load()
}
