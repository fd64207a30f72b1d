package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Store keeps per-student schedules and chat identity associations in SQLite
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS schedules (
	handle   TEXT    NOT NULL,
	semester INTEGER NOT NULL,
	block    TEXT    NOT NULL,
	class    TEXT    NOT NULL,
	PRIMARY KEY (handle, semester, block)
);

CREATE TABLE IF NOT EXISTS associations (
	user_id    TEXT PRIMARY KEY,
	handle     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Schedule store opened", zap.String("path", path))
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// ReadSchedule returns block → class for a student in a semester. Blocks
// without a stored class map to "".
func (s *Store) ReadSchedule(ctx context.Context, handle string, semester int, blocks []string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block, class FROM schedules WHERE handle = ? AND semester = ?`,
		handle, semester)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string)
	for rows.Next() {
		var block, class string
		if err := rows.Scan(&block, &class); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		stored[block] = class
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}

	schedule := make(map[string]string, len(blocks))
	for _, block := range blocks {
		schedule[block] = stored[block]
	}
	return schedule, nil
}

// SaveSchedule replaces a student's classes for a semester
func (s *Store) SaveSchedule(ctx context.Context, handle string, semester int, classes map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedules WHERE handle = ? AND semester = ?`, handle, semester); err != nil {
		return fmt.Errorf("failed to clear schedule: %w", err)
	}

	for block, class := range classes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedules (handle, semester, block, class) VALUES (?, ?, ?, ?)`,
			handle, semester, block, class); err != nil {
			return fmt.Errorf("failed to save block %s: %w", block, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedule: %w", err)
	}

	s.logger.Info("Schedule saved",
		zap.String("handle", handle),
		zap.Int("semester", semester),
		zap.Int("blocks", len(classes)))
	return nil
}

// RegisterAssociation links a chat user to a school handle, replacing any
// previous link
func (s *Store) RegisterAssociation(ctx context.Context, userID, handle string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO associations (user_id, handle, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET handle = excluded.handle, updated_at = excluded.updated_at`,
		userID, handle, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to register association: %w", err)
	}

	s.logger.Info("Association registered",
		zap.String("user_id", userID),
		zap.String("handle", handle))
	return nil
}

// AssociatedHandle returns the handle linked to a chat user, if any
func (s *Store) AssociatedHandle(ctx context.Context, userID string) (mo.Option[string], error) {
	var handle string
	err := s.db.QueryRowContext(ctx,
		`SELECT handle FROM associations WHERE user_id = ?`, userID).Scan(&handle)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[string](), nil
	}
	if err != nil {
		return mo.None[string](), fmt.Errorf("failed to read association: %w", err)
	}
	return mo.Some(handle), nil
}
