package challenge

import (
	"log/slog"
	"time"
)

// Challenge is the metadata about a single spoken challenge issuance.
type Challenge struct {
	ID        string            `json:"id"`        // Opaque, unguessable identifier handed to the client
	Kind      string            `json:"kind"`      // Name of the phrase source that produced Phrase
	Phrase    string            `json:"phrase"`    // The words the client is expected to speak
	IssuedAt  time.Time         `json:"issuedAt"`  // When the challenge was issued
	ExpiresAt time.Time         `json:"expiresAt"` // After this instant the challenge can no longer be answered
	Consumed  bool              `json:"consumed"`  // Set once a submission has claimed the challenge
	Metadata  map[string]string `json:"metadata"`  // Challenge metadata such as IP address and user agent
}

// Expired reports whether the challenge can no longer be answered at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// LogValue deliberately leaves out the phrase so logs can't be used to
// answer a live challenge.
func (c *Challenge) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", c.ID),
		slog.String("kind", c.Kind),
		slog.Time("issued_at", c.IssuedAt),
		slog.Time("expires_at", c.ExpiresAt),
		slog.Bool("consumed", c.Consumed),
	)
}
