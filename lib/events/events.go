// Package events publishes verdicts and operational alerts to NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/vox/lib/policy"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectVerdicts = "vox.verdicts"
	SubjectAlerts   = "vox.alerts"
)

var ErrNotConnected = errors.New("events: not connected")

// Alert kinds.
const (
	AlertFeatureSchemaMismatch = "feature_schema_mismatch"
	AlertModelUnavailable      = "model_unavailable"
	AlertModelSwapped          = "model_swapped"
)

// VerdictEvent is the wire form of a verdict.
type VerdictEvent struct {
	ID              string          `json:"id"`
	Timestamp       int64           `json:"timestamp"`
	ChallengeID     string          `json:"challenge_id"`
	ChallengeKind   string          `json:"challenge_kind,omitempty"`
	Accepted        bool            `json:"accepted"`
	Reason          policy.Reason   `json:"reason"`
	Reasons         []policy.Reason `json:"reasons"`
	TranscriptScore float64         `json:"transcript_score"`
	BotScore        float64         `json:"bot_score"`
	ModelVersion    string          `json:"model_version,omitempty"`
}

// Alert is an operational event that needs a human to look at it.
type Alert struct {
	ID        string            `json:"id"`
	Timestamp int64             `json:"timestamp"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Publisher sends events somewhere.
type Publisher interface {
	PublishVerdict(ctx context.Context, kind string, v policy.Verdict) error
	PublishAlert(ctx context.Context, a Alert) error
	Close() error
}

// NewVerdictEvent stamps v with an id and the current time.
func NewVerdictEvent(kind string, v policy.Verdict) VerdictEvent {
	return VerdictEvent{
		ID:              newID(),
		Timestamp:       time.Now().UnixMilli(),
		ChallengeID:     v.ChallengeID,
		ChallengeKind:   kind,
		Accepted:        v.Accepted,
		Reason:          v.Reason,
		Reasons:         v.Reasons,
		TranscriptScore: v.TranscriptScore,
		BotScore:        v.BotScore,
		ModelVersion:    v.ModelVersion,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Nop drops everything.
type Nop struct{}

func (Nop) PublishVerdict(context.Context, string, policy.Verdict) error { return nil }
func (Nop) PublishAlert(context.Context, Alert) error                   { return nil }
func (Nop) Close() error                                                { return nil }

// NATS publishes JSON events on SubjectVerdicts and SubjectAlerts.
type NATS struct {
	conn *nats.Conn
}

// Connect dials url. The connection keeps reconnecting in the background
// after the first success.
func Connect(url string) (*NATS, error) {
	lg := slog.With("subsystem", "events")

	conn, err := nats.Connect(url,
		nats.Name("vox"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			lg.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			lg.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: can't connect to %s: %w", url, err)
	}

	lg.Info("connected to nats", "url", conn.ConnectedUrl())
	return &NATS{conn: conn}, nil
}

func (n *NATS) publish(subject string, v any) error {
	if n.conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("events: can't encode %s event: %w", subject, err)
	}

	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: can't publish to %s: %w", subject, err)
	}

	return nil
}

// PublishVerdict publishes on SubjectVerdicts with the primary reason
// appended, so consumers can subscribe to vox.verdicts.BotDetected.
func (n *NATS) PublishVerdict(_ context.Context, kind string, v policy.Verdict) error {
	return n.publish(SubjectVerdicts+"."+string(v.Reason), NewVerdictEvent(kind, v))
}

func (n *NATS) PublishAlert(_ context.Context, a Alert) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Timestamp == 0 {
		a.Timestamp = time.Now().UnixMilli()
	}

	return n.publish(SubjectAlerts+"."+a.Kind, a)
}

func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
