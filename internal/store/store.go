// Package store handles SQLite persistence of the session index.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/analogrec/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps SQLite access for session data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			log_path TEXT NOT NULL,
			records INTEGER NOT NULL,
			read_errors INTEGER NOT NULL,
			buffer_size INTEGER NOT NULL,
			start_code INTEGER NOT NULL,
			stop_code INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a finished session. An empty ID is replaced with a new
// UUID; the stored ID is returned.
func (s *Store) InsertSession(ctx context.Context, session model.Session) (string, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, log_path, records, read_errors, buffer_size, start_code, stop_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.StartedAt.UTC().Format(timeLayout),
		session.EndedAt.UTC().Format(timeLayout),
		session.LogPath,
		session.Records,
		session.ReadErrors,
		session.BufferSize,
		int(session.StartCode),
		int(session.StopCode),
	)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

// ListSessions returns sessions ordered by start time, oldest first. When
// last > 0 only the most recent last sessions are returned.
func (s *Store) ListSessions(ctx context.Context, last int) ([]model.Session, error) {
	query := `SELECT id, started_at, ended_at, log_path, records, read_errors, buffer_size, start_code, stop_code
		FROM sessions
		ORDER BY started_at ASC`
	args := []any{}
	if last > 0 {
		query = `SELECT * FROM (
			SELECT id, started_at, ended_at, log_path, records, read_errors, buffer_size, start_code, stop_code
			FROM sessions
			ORDER BY started_at DESC
			LIMIT ?
		) ORDER BY started_at ASC`
		args = append(args, last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns the session with the given ID, or sql.ErrNoRows.
func (s *Store) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, log_path, records, read_errors, buffer_size, start_code, stop_code
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var session model.Session
	var startedAt, endedAt string
	var startCode, stopCode int
	if err := row.Scan(&session.ID, &startedAt, &endedAt, &session.LogPath, &session.Records,
		&session.ReadErrors, &session.BufferSize, &startCode, &stopCode); err != nil {
		return model.Session{}, err
	}
	var err error
	if session.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return model.Session{}, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if session.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
		return model.Session{}, fmt.Errorf("invalid ended_at %q: %w", endedAt, err)
	}
	session.StartCode = uint16(startCode)
	session.StopCode = uint16(stopCode)
	return session, nil
}
