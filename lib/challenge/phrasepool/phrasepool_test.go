package phrasepool

import (
	"errors"
	"slices"
	"testing"

	"github.com/TecharoHQ/vox/lib/challenge"
)

func TestPhrase(t *testing.T) {
	for _, tt := range []struct {
		name    string
		opts    challenge.Options
		from    []string
		wantErr error
	}{
		{
			name: "default pool",
			from: Default,
		},
		{
			name: "custom pool",
			opts: challenge.Options{Pool: []string{"hello world"}},
			from: []string{"hello world"},
		},
		{
			name:    "blank entry",
			opts:    challenge.Options{Pool: []string{"fine", "  "}},
			wantErr: challenge.ErrBadConfig,
		},
		{
			name:    "length is rejected",
			opts:    challenge.Options{Length: 3},
			wantErr: challenge.ErrBadConfig,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Impl{}.Phrase(nil, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("wanted error %v, got: %v", tt.wantErr, err)
			}
			if tt.wantErr != nil {
				return
			}

			if !slices.Contains(tt.from, got) {
				t.Errorf("phrase %q is not from the pool", got)
			}
		})
	}
}
