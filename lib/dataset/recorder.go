package dataset

import (
	"context"
	"os"
	"path/filepath"

	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/lib/audio"
)

// Sample is an answer offered for future training. It carries no client
// metadata.
type Sample struct {
	Clip     *audio.Clip
	Kind     string
	Accepted bool
}

// Recorder keeps samples for later labeling. Verification never depends on
// it succeeding.
type Recorder interface {
	Record(ctx context.Context, s Sample) error
}

// NopRecorder discards everything. It is the default.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Sample) error { return nil }

// DirRecorder re-encodes samples as plain wav under
// <dir>/unlabeled/<accepted|rejected>/<sha256>.wav. Re-encoding drops any
// container metadata the client sent.
type DirRecorder struct {
	Dir string
}

func (d DirRecorder) Record(_ context.Context, s Sample) error {
	data, err := audio.EncodeWAV(s.Clip)
	if err != nil {
		return err
	}

	outcome := "rejected"
	if s.Accepted {
		outcome = "accepted"
	}

	dir := filepath.Join(d.Dir, "unlabeled", outcome)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, internal.SHA256sumBytes(data)+".wav"), data, 0o644)
}
