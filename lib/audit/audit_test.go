package audit

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/lib/policy"
)

func TestOpenNoPath(t *testing.T) {
	if _, err := Open(t.Context(), ""); !errors.Is(err, ErrNoPath) {
		t.Errorf("wanted ErrNoPath, got %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	for _, tt := range []struct {
		name string
		path func(t *testing.T) string
	}{
		{name: "memory", path: func(*testing.T) string { return Memory }},
		{name: "file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nested", "audit.db") }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Open(t.Context(), tt.path(t))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { l.Close() })

			base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

			rejected := policy.Reject("aaaa", policy.ReasonTranscriptMismatch, policy.ReasonBotDetected)
			rejected.TranscriptScore = 0.4
			rejected.BotScore = 0.2

			accepted := policy.Accept("bbbb", 1, 0.9)
			accepted.ModelVersion = "bafkreiexample"

			for i, e := range []*Entry{
				{CreatedAt: base, ChallengeID: "aaaa", ChallengeKind: "digits", Verdict: rejected, AudioDuration: 2 * time.Second},
				{CreatedAt: base.Add(time.Second), ChallengeID: "bbbb", ChallengeKind: "digits", Verdict: accepted, RemoteAddr: "198.51.100.7"},
			} {
				if err := l.Record(t.Context(), e); err != nil {
					t.Fatalf("record %d: %v", i, err)
				}
				if e.ID == "" {
					t.Errorf("record %d: no id assigned", i)
				}
			}

			got, err := l.Recent(t.Context(), 10)
			if err != nil {
				t.Fatal(err)
			}

			if len(got) != 2 {
				t.Fatalf("wanted 2 entries, got %d", len(got))
			}

			if got[0].ChallengeID != "bbbb" || !got[0].Verdict.Accepted || got[0].Verdict.ModelVersion != "bafkreiexample" {
				t.Errorf("newest entry is wrong: %+v", got[0])
			}

			if got[1].Verdict.Reason != policy.ReasonTranscriptMismatch || len(got[1].Verdict.Reasons) != 2 {
				t.Errorf("reasons were not preserved: %+v", got[1].Verdict)
			}

			if got[1].AudioDuration != 2*time.Second {
				t.Errorf("wanted 2s duration, got %s", got[1].AudioDuration)
			}

			counts, err := l.Counts(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			if counts[policy.ReasonAccepted] != 1 || counts[policy.ReasonTranscriptMismatch] != 1 {
				t.Errorf("bad counts: %v", counts)
			}

			n, err := l.Prune(t.Context(), base.Add(500*time.Millisecond))
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Errorf("wanted 1 pruned entry, got %d", n)
			}
		})
	}
}
