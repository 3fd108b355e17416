// Package store records sessions that can be reattached later.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/karouf/trainbox/util"
)

var storeLogger = util.Log("store")

// Session is a persisted, reattachable session record
type Session struct {
	User        string
	Environment string
	Container   string
	CreatedAt   time.Time
}

// Recorder is the write side used during launch
type Recorder interface {
	// Record reports whether a new row was written
	Record(ctx context.Context, s Session) (bool, error)
	Remove(ctx context.Context, user, environment string) error
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	user        TEXT NOT NULL,
	environment TEXT NOT NULL,
	container   TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (user, environment)
)`

// SQLiteStore keeps session records in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the session database at path
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("session store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts a session and reports whether it was new.
// Recording an existing (user, environment) pair is a no-op.
func (s *SQLiteStore) Record(ctx context.Context, sess Session) (bool, error) {
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (user, environment, container, created_at) VALUES (?, ?, ?, ?)`,
		sess.User, sess.Environment, sess.Container, created.Unix())
	if err != nil {
		return false, fmt.Errorf("record session %s/%s: %w", sess.User, sess.Environment, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record session %s/%s: %w", sess.User, sess.Environment, err)
	}
	if n == 0 {
		storeLogger.Debugf("Session %s/%s already recorded", sess.User, sess.Environment)
	}
	return n > 0, nil
}

// Remove deletes a session record
func (s *SQLiteStore) Remove(ctx context.Context, user, environment string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user = ? AND environment = ?`, user, environment)
	if err != nil {
		return fmt.Errorf("remove session %s/%s: %w", user, environment, err)
	}
	return nil
}

// Find returns the session for (user, environment), or nil if none is recorded
func (s *SQLiteStore) Find(ctx context.Context, user, environment string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user, environment, container, created_at FROM sessions WHERE user = ? AND environment = ?`,
		user, environment)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session %s/%s: %w", user, environment, err)
	}
	return sess, nil
}

// List returns all sessions recorded for user, oldest first
func (s *SQLiteStore) List(ctx context.Context, user string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user, environment, container, created_at FROM sessions WHERE user = ? ORDER BY created_at, environment`,
		user)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", user, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var created int64
	if err := row.Scan(&sess.User, &sess.Environment, &sess.Container, &created); err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(created, 0)
	return &sess, nil
}
