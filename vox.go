// Package vox contains the version number and shared constants of Vox, the
// spoken-challenge liveness gate.
package vox

import "time"

// Version is the current version of Vox.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// TokenCookieName is the name of the cookie that carries the signed pass
// token handed out after an accepted verdict.
var TokenCookieName = "within.website-x-vox-pass"

// BasePrefix is a global prefix for all Vox endpoints. Empty means the API
// is mounted at the root.
var BasePrefix = ""

const (
	// APIPrefix is the URL path prefix for all API routes.
	APIPrefix = "/.within.website/x/vox/api/"

	// DefaultChallengeTTL is how long an issued challenge stays answerable.
	DefaultChallengeTTL = 30 * time.Second

	// DefaultTokenExpiration is the lifetime of a signed pass token.
	DefaultTokenExpiration = 7 * 24 * time.Hour

	// DefaultTranscriptThreshold is T_match, the minimum transcript similarity.
	DefaultTranscriptThreshold = 0.8

	// DefaultHumanThreshold is T_human, the minimum human-likelihood score.
	DefaultHumanThreshold = 0.5

	// DefaultRateLimitWindow is the minimum spacing between two verification
	// attempts from the same client address.
	DefaultRateLimitWindow = 2 * time.Second

	// MaxAudioBytes caps the size of an uploaded answer.
	MaxAudioBytes = 8 << 20
)
