package policy

// Reason is a machine-readable code explaining a verdict.
type Reason string

const (
	ReasonAccepted              Reason = "Accepted"
	ReasonInvalidChallenge      Reason = "InvalidChallenge"
	ReasonLowQualityAudio       Reason = "LowQualityAudio"
	ReasonDecodeError           Reason = "DecodeError"
	ReasonTranscriptMismatch    Reason = "TranscriptMismatch"
	ReasonBotDetected           Reason = "BotDetected"
	ReasonFeatureSchemaMismatch Reason = "FeatureSchemaMismatch"
	ReasonTimeout               Reason = "Timeout"
	ReasonModelUnavailable      Reason = "ModelUnavailable"
	ReasonExpressionRejected    Reason = "ExpressionRejected"
)

// Reasons lists every code in the order a verdict reports them.
var Reasons = []Reason{
	ReasonAccepted,
	ReasonInvalidChallenge,
	ReasonLowQualityAudio,
	ReasonDecodeError,
	ReasonTranscriptMismatch,
	ReasonBotDetected,
	ReasonFeatureSchemaMismatch,
	ReasonTimeout,
	ReasonModelUnavailable,
	ReasonExpressionRejected,
}

func (r Reason) String() string { return string(r) }

// MessageID is the catalog key for the user-facing explanation of r.
func (r Reason) MessageID() string { return "reason_" + string(r) }
