package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TecharoHQ/vox/data"
	"github.com/TecharoHQ/vox/lib/challenge"
	"github.com/TecharoHQ/vox/lib/policy/config"
	"github.com/TecharoHQ/vox/lib/policy/expressions"
)

func TestDefaultPolicyMustParse(t *testing.T) {
	fin, err := data.Policies.Open(data.DefaultPolicy)
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	pc, err := ParseConfig(fin, data.DefaultPolicy)
	if err != nil {
		t.Fatalf("can't parse config: %v", err)
	}

	if pc.Challenge.TTL != 30*time.Second {
		t.Errorf("wanted 30s ttl, got %s", pc.Challenge.TTL)
	}

	if pc.Fusion.HasExpression() {
		t.Error("default policy should use the plain threshold rule")
	}

	if pc.RateLimitWindow != 2*time.Second {
		t.Errorf("wanted 2s rate limit window, got %s", pc.RateLimitWindow)
	}
}

func TestDefaultMatchesEmbedded(t *testing.T) {
	fin, err := data.Policies.Open(data.DefaultPolicy)
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	c, err := config.Load(fin, data.DefaultPolicy)
	if err != nil {
		t.Fatal(err)
	}

	def := config.Default()
	if c.Thresholds != def.Thresholds || c.Audio != def.Audio || c.Timeouts != def.Timeouts {
		t.Errorf("embedded policy drifted from built-in defaults:\nfile:    %+v\ndefault: %+v", c, def)
	}
}

func TestParseConfig(t *testing.T) {
	for _, tt := range []struct {
		fname string
		err   error
	}{
		{fname: "expression.yaml"},
		{fname: "bad_kind.yaml", err: challenge.ErrUnknownKind},
		{fname: "bad_expression.yaml", err: expressions.ErrCantCompile},
	} {
		t.Run(tt.fname, func(t *testing.T) {
			fin, err := os.Open(filepath.Join("testdata", tt.fname))
			if err != nil {
				t.Fatal(err)
			}
			defer fin.Close()

			if _, err := ParseConfig(fin, tt.fname); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestFusionDefaultRule(t *testing.T) {
	f, err := NewFusion(config.Thresholds{Transcript: 0.8, Human: 0.5}, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name     string
		scores   Scores
		accepted bool
		reasons  []Reason
	}{
		{name: "both pass", scores: Scores{Transcript: 1, Bot: 0.9}, accepted: true},
		{name: "exactly at thresholds", scores: Scores{Transcript: 0.8, Bot: 0.5}, accepted: true},
		{name: "transcript mismatch with high bot score", scores: Scores{Transcript: 2.0 / 3.0, Bot: 0.99}, reasons: []Reason{ReasonTranscriptMismatch}},
		{name: "bot", scores: Scores{Transcript: 1, Bot: 0.1}, reasons: []Reason{ReasonBotDetected}},
		{name: "both fail", scores: Scores{Transcript: 0.1, Bot: 0.1}, reasons: []Reason{ReasonTranscriptMismatch, ReasonBotDetected}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			accepted, reasons, err := f.Evaluate(t.Context(), tt.scores)
			if err != nil {
				t.Fatal(err)
			}

			if accepted != tt.accepted {
				t.Errorf("wanted accepted=%v, got %v", tt.accepted, accepted)
			}

			if len(reasons) != len(tt.reasons) {
				t.Fatalf("wanted reasons %v, got %v", tt.reasons, reasons)
			}

			for i := range reasons {
				if reasons[i] != tt.reasons[i] {
					t.Errorf("reason %d: wanted %s, got %s", i, tt.reasons[i], reasons[i])
				}
			}
		})
	}
}

func TestFusionExpression(t *testing.T) {
	f, err := NewFusion(
		config.Thresholds{Transcript: 0.8, Human: 0.5},
		&config.ExpressionOrList{Any: []string{
			`transcript_score >= transcript_threshold && bot_score >= human_threshold`,
			`transcript_score == 1.0 && bot_score >= 0.4`,
		}},
	)
	if err != nil {
		t.Fatal(err)
	}

	if !f.HasExpression() {
		t.Fatal("expression was not compiled")
	}

	accepted, reasons, err := f.Evaluate(t.Context(), Scores{Transcript: 1, Bot: 0.45})
	if err != nil {
		t.Fatal(err)
	}
	if !accepted || len(reasons) != 0 {
		t.Errorf("perfect transcript should relax the human threshold, got %v %v", accepted, reasons)
	}

	accepted, reasons, err = f.Evaluate(t.Context(), Scores{Transcript: 0.9, Bot: 0.45})
	if err != nil {
		t.Fatal(err)
	}
	if accepted || len(reasons) != 1 || reasons[0] != ReasonBotDetected {
		t.Errorf("wanted BotDetected rejection, got %v %v", accepted, reasons)
	}
}

func TestFusionExpressionRejected(t *testing.T) {
	f, err := NewFusion(
		config.Thresholds{Transcript: 0.5, Human: 0.5},
		&config.ExpressionOrList{Expression: `challenge_kind == "phrase"`},
	)
	if err != nil {
		t.Fatal(err)
	}

	accepted, reasons, err := f.Evaluate(t.Context(), Scores{Transcript: 1, Bot: 1, Kind: "digits"})
	if err != nil {
		t.Fatal(err)
	}

	if accepted || len(reasons) != 1 || reasons[0] != ReasonExpressionRejected {
		t.Errorf("wanted ExpressionRejected, got %v %v", accepted, reasons)
	}
}

func TestVerdict(t *testing.T) {
	v := Reject("abc", ReasonTranscriptMismatch, ReasonBotDetected)
	if v.Accepted {
		t.Error("rejected verdict is accepted")
	}
	if v.Reason != ReasonTranscriptMismatch {
		t.Errorf("wanted primary reason TranscriptMismatch, got %s", v.Reason)
	}
	if !v.Has(ReasonBotDetected) {
		t.Error("secondary reason was collapsed")
	}

	a := Accept("abc", 1, 0.9)
	if !a.Accepted || a.Reason != ReasonAccepted {
		t.Errorf("bad accepted verdict: %+v", a)
	}

	Record(v)
	Record(a)
}
