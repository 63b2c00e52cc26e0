package policy

import (
	"log/slog"
	"slices"
)

// Verdict is the outcome of one verification attempt.
type Verdict struct {
	ChallengeID     string   `json:"challenge_id"`
	Accepted        bool     `json:"accepted"`
	TranscriptScore float64  `json:"transcript_score"`
	BotScore        float64  `json:"bot_score"`
	Reason          Reason   `json:"reason"`
	Reasons         []Reason `json:"reasons"`
	ModelVersion    string   `json:"model_version,omitempty"`

	// Transcript and Detail stay server side.
	Transcript string `json:"-"`
	Detail     string `json:"-"`
}

// Accept builds an accepted verdict.
func Accept(id string, transcriptScore, botScore float64) Verdict {
	return Verdict{
		ChallengeID:     id,
		Accepted:        true,
		TranscriptScore: transcriptScore,
		BotScore:        botScore,
		Reason:          ReasonAccepted,
		Reasons:         []Reason{ReasonAccepted},
	}
}

// Reject builds a rejected verdict. The first reason becomes the primary one.
func Reject(id string, reasons ...Reason) Verdict {
	if len(reasons) == 0 {
		reasons = []Reason{ReasonExpressionRejected}
	}

	return Verdict{
		ChallengeID: id,
		Reason:      reasons[0],
		Reasons:     slices.Clone(reasons),
	}
}

// Has reports whether r is one of the verdict's reasons.
func (v Verdict) Has(r Reason) bool {
	return slices.Contains(v.Reasons, r)
}

func (v Verdict) LogValue() slog.Value {
	reasons := make([]string, len(v.Reasons))
	for i, r := range v.Reasons {
		reasons[i] = string(r)
	}

	attrs := []slog.Attr{
		slog.String("challenge_id", v.ChallengeID),
		slog.Bool("accepted", v.Accepted),
		slog.Float64("transcript_score", v.TranscriptScore),
		slog.Float64("bot_score", v.BotScore),
		slog.String("reason", string(v.Reason)),
		slog.Any("reasons", reasons),
	}

	if v.ModelVersion != "" {
		attrs = append(attrs, slog.String("model_version", v.ModelVersion))
	}

	if v.Detail != "" {
		attrs = append(attrs, slog.String("detail", v.Detail))
	}

	return slog.GroupValue(attrs...)
}
