// Package ledger provides an append-only history of fade controller events.
// It records lifecycle transitions for auditing and the history endpoint.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/eventbus"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64              `json:"id"`
	EventType eventbus.EventType `json:"event_type"`
	Timestamp time.Time          `json:"timestamp"`
	RunID     string             `json:"run_id,omitempty"`
	CycleID   string             `json:"cycle_id,omitempty"`
	Payload   map[string]any     `json:"payload,omitempty"`
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event to the ledger
func (l *Ledger) Append(e eventbus.Event) error {
	var payloadJSON []byte
	var err error

	if e.Data != nil {
		payloadJSON, err = json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	ts := e.Time
	if ts.IsZero() {
		ts = l.now()
	}

	_, err = l.db.Exec(
		`INSERT INTO fade_ledger (event_type, timestamp, run_id, cycle_id, payload) VALUES (?, ?, ?, ?, ?)`,
		string(e.Type), ts.UTC().Unix(), e.RunID, e.CycleID, string(payloadJSON),
	)
	return err
}

// Recent returns the newest entries first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, run_id, cycle_id, payload
		FROM fade_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByRun returns entries of one controller run, newest first
func (l *Ledger) GetByRun(runID string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, run_id, cycle_id, payload
		FROM fade_ledger
		WHERE run_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM fade_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Handler returns an event bus handler that records every event it receives.
func (l *Ledger) Handler() eventbus.Handler {
	return func(e eventbus.Event) {
		if err := l.Append(e); err != nil {
			log.Error().Err(err).Str("event_type", string(e.Type)).Msg("Failed to append ledger entry")
		}
	}
}

// RunCleanup periodically deletes entries older than retention until ctx is done.
func (l *Ledger) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := l.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	entries := []*Entry{}
	for rows.Next() {
		var entry Entry
		var payloadStr, runID, cycleID sql.NullString
		var timestamp int64

		err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &runID, &cycleID, &payloadStr)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if runID.Valid {
			entry.RunID = runID.String
		}
		if cycleID.Valid {
			entry.CycleID = cycleID.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
