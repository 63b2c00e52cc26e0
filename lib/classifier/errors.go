// Package classifier trains and runs the human versus bot acoustic model.
package classifier

import "errors"

var (
	// ErrInsufficientData aborts training when a class is under-represented.
	ErrInsufficientData = errors.New("classifier: insufficient training data")

	// ErrSchemaMismatch means a vector or feature configuration doesn't match
	// the one the model was trained with.
	ErrSchemaMismatch = errors.New("classifier: feature schema mismatch")

	// ErrConflictingLabel means the same example was labeled both human and
	// bot.
	ErrConflictingLabel = errors.New("classifier: example has conflicting labels")

	// ErrNonFiniteFeature means a vector holds NaN or Inf. It points at bad
	// input, not at drift between extractor and model.
	ErrNonFiniteFeature = errors.New("classifier: feature vector is not finite")

	// ErrModelUnavailable means no artifact is loaded.
	ErrModelUnavailable = errors.New("classifier: no model loaded")

	ErrBadConfig        = errors.New("classifier: configuration is invalid")
	ErrUnknownAlgorithm = errors.New("classifier: unknown algorithm")
	ErrBadArtifact      = errors.New("classifier: artifact is malformed")
)
