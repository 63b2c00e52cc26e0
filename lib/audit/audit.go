// Package audit keeps a SQLite log of every verdict for later review and for
// harvesting training data.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/TecharoHQ/vox/lib/policy"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

var ErrNoPath = errors.New("audit: database path is empty")

// Memory opens a private in-memory database.
const Memory = ":memory:"

// Entry is one audited verdict.
type Entry struct {
	ID             string
	CreatedAt      time.Time
	ChallengeID    string
	ChallengeKind  string
	Verdict        policy.Verdict
	AudioSHA256    string
	AudioDuration  time.Duration
	RemoteAddr     string
	ProcessingTime time.Duration
}

// Log is the verdict audit log.
type Log struct {
	db   *sql.DB
	path string
}

func Open(ctx context.Context, path string) (*Log, error) {
	if path == "" {
		return nil, ErrNoPath
	}

	if path != Memory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("audit: can't create %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: can't open %s: %w", path, err)
	}

	if path == Memory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: can't apply schema: %w", err)
	}

	slog.Debug("audit log opened", "path", path)

	return &Log{db: db, path: path}, nil
}

func configure(ctx context.Context, db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("audit: %q failed: %w", pragma, err)
		}
	}

	return nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends e. Missing ids and timestamps are filled in.
func (l *Log) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("audit: can't generate id: %w", err)
		}
		e.ID = id.String()
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	reasons, err := json.Marshal(e.Verdict.Reasons)
	if err != nil {
		return fmt.Errorf("audit: can't encode reasons: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO verdicts (
			id, created_at, challenge_id, challenge_kind,
			accepted, reason, reasons, transcript_score, bot_score,
			model_version, audio_sha256, audio_duration_ms, remote_addr, processing_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UnixMilli(), e.ChallengeID, e.ChallengeKind,
		e.Verdict.Accepted, string(e.Verdict.Reason), string(reasons), e.Verdict.TranscriptScore, e.Verdict.BotScore,
		e.Verdict.ModelVersion, e.AudioSHA256, e.AudioDuration.Milliseconds(), e.RemoteAddr, e.ProcessingTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("audit: can't insert verdict: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, created_at, challenge_id, challenge_kind,
			accepted, reason, reasons, transcript_score, bot_score,
			model_version, audio_sha256, audio_duration_ms, remote_addr, processing_ms
		FROM verdicts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: can't query verdicts: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var (
			e                  Entry
			createdAt          int64
			reason, reasons    string
			durationMS, procMS int64
		)

		if err := rows.Scan(
			&e.ID, &createdAt, &e.ChallengeID, &e.ChallengeKind,
			&e.Verdict.Accepted, &reason, &reasons, &e.Verdict.TranscriptScore, &e.Verdict.BotScore,
			&e.Verdict.ModelVersion, &e.AudioSHA256, &durationMS, &e.RemoteAddr, &procMS,
		); err != nil {
			return nil, fmt.Errorf("audit: can't scan verdict: %w", err)
		}

		if err := json.Unmarshal([]byte(reasons), &e.Verdict.Reasons); err != nil {
			return nil, fmt.Errorf("audit: bad reasons column for %s: %w", e.ID, err)
		}

		e.CreatedAt = time.UnixMilli(createdAt)
		e.Verdict.ChallengeID = e.ChallengeID
		e.Verdict.Reason = policy.Reason(reason)
		e.AudioDuration = time.Duration(durationMS) * time.Millisecond
		e.ProcessingTime = time.Duration(procMS) * time.Millisecond
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: error iterating verdicts: %w", err)
	}

	return result, nil
}

// Counts returns how many verdicts were recorded per primary reason.
func (l *Log) Counts(ctx context.Context) (map[policy.Reason]int64, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT reason, COUNT(*) FROM verdicts GROUP BY reason`)
	if err != nil {
		return nil, fmt.Errorf("audit: can't count verdicts: %w", err)
	}
	defer rows.Close()

	result := map[policy.Reason]int64{}
	for rows.Next() {
		var (
			reason string
			n      int64
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("audit: can't scan count: %w", err)
		}
		result[policy.Reason(reason)] = n
	}

	return result, rows.Err()
}

// Prune deletes entries older than cutoff and reports how many went.
func (l *Log) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM verdicts WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("audit: can't prune: %w", err)
	}

	return res.RowsAffected()
}
