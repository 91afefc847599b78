// Package journal persists per-session detection and learning events to
// SQLite for post-walk review.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sightline-ai/percept/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Journal records events for one walking session.
type Journal struct {
	db        *sql.DB
	sessionID string
}

// Open opens (or creates) the journal database, applies the schema and
// starts a new session.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	sessionID := uuid.New().String()
	_, err = db.Exec(
		`INSERT INTO sessions (session_id, started_at) VALUES (?, ?)`,
		sessionID, time.Now().UTC(),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}

	return &Journal{db: db, sessionID: sessionID}, nil
}

// SessionID returns the identifier of the current session.
func (j *Journal) SessionID() string { return j.sessionID }

// RecordDetections stores the merged detections of one frame.
func (j *Journal) RecordDetections(ctx context.Context, seq uint64, dets []domain.Detection) error {
	if len(dets) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}

	for _, d := range dets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO detections (session_id, frame_seq, class, confidence, layer, tier, priority, area)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			j.sessionID, int64(seq), d.Class, d.Confidence,
			string(d.Layer), string(d.Tier), int(d.Priority), d.Area,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert detection %s: %w", d.Class, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}
	return nil
}

// RecordLearn stores one vocabulary learning outcome.
func (j *Journal) RecordLearn(ctx context.Context, source domain.VocabSource, class string, accepted bool, reason string) error {
	acceptedInt := 0
	if accepted {
		acceptedInt = 1
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO learn_events (session_id, source, class, accepted, reason)
		 VALUES (?, ?, ?, ?, ?)`,
		j.sessionID, string(source), class, acceptedInt, reason,
	)
	if err != nil {
		return fmt.Errorf("insert learn event %s: %w", class, err)
	}
	return nil
}

// ClassCounts returns how often each class was detected this session,
// most frequent first.
func (j *Journal) ClassCounts(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT class, COUNT(*) FROM detections
		 WHERE session_id = ?
		 GROUP BY class
		 ORDER BY COUNT(*) DESC`,
		j.sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query class counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scan class count: %w", err)
		}
		counts[class] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class counts: %w", err)
	}
	return counts, nil
}

// Close marks the session as ended and closes the database.
func (j *Journal) Close() error {
	_, err := j.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		time.Now().UTC(), j.sessionID,
	)
	if err != nil {
		j.db.Close()
		return fmt.Errorf("end session: %w", err)
	}
	return j.db.Close()
}
