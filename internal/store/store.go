// Package store archives finished session logs to SQLite so past recordings
// can be listed and recompiled without the original log files.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/talk2silicon/talk2browser/dbopen"
	"github.com/talk2silicon/talk2browser/recorder"
)

// Store is the session archive database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the archive database at path and applies the
// schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// SessionInfo is one archived session row.
type SessionInfo struct {
	ID        string
	Task      string
	StartedAt int64
	EndedAt   int64
	Actions   int
}

// SaveSession archives a session's retained log in one transaction.
// Re-saving a session id replaces its previous archive.
func (s *Store) SaveSession(ctx context.Context, id, task string, startedAt, endedAt int64, records []recorder.Record) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: clear session %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, task, started_at, ended_at) VALUES (?, ?, ?, ?)`,
		id, task, startedAt, endedAt); err != nil {
		return fmt.Errorf("store: insert session %s: %w", id, err)
	}
	for i, rec := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO actions (session_id, position, seq, type, page_id, target, value, mode, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, rec.Seq, string(rec.Type), rec.PageID, rec.Target, rec.Value, string(rec.Mode), rec.Timestamp); err != nil {
			return fmt.Errorf("store: insert action %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// LoadSession returns an archived session's log in original order.
func (s *Store) LoadSession(ctx context.Context, id string) ([]recorder.Record, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT seq, type, page_id, target, value, mode, timestamp
		 FROM actions WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("store: load session %s: %w", id, err)
	}
	defer rows.Close()

	var out []recorder.Record
	for rows.Next() {
		var rec recorder.Record
		var typ, mode string
		if err := rows.Scan(&rec.Seq, &typ, &rec.PageID, &rec.Target, &rec.Value, &mode, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan action: %w", err)
		}
		rec.Type = recorder.ActionType(typ)
		rec.Mode = recorder.Mode(mode)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate actions: %w", err)
	}
	if out == nil {
		var exists int
		err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: session %s not found", id)
		}
		if err != nil {
			return nil, fmt.Errorf("store: check session %s: %w", id, err)
		}
	}
	return out, nil
}

// ListSessions returns archived sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT s.id, s.task, s.started_at, COALESCE(s.ended_at, 0),
		        (SELECT COUNT(*) FROM actions a WHERE a.session_id = s.id)
		 FROM sessions s ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Task, &info.StartedAt, &info.EndedAt, &info.Actions); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
