package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-minutes/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript_lines (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room       TEXT NOT NULL,
	line       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transcript_lines_room ON transcript_lines(room, id);
`

// SQLiteStore implements store.TranscriptLog for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append adds one line to the room's log.
func (s *SQLiteStore) Append(ctx context.Context, room, line string) error {
	query := `
		INSERT INTO transcript_lines (room, line)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, room, line); err != nil {
		return fmt.Errorf("insert transcript line: %w", err)
	}
	return nil
}

// Lines returns the room's lines in insertion order.
func (s *SQLiteStore) Lines(ctx context.Context, room string) ([]string, error) {
	query := `
		SELECT line
		FROM transcript_lines
		WHERE room = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("query transcript lines: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan transcript line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript lines: %w", err)
	}

	if len(lines) == 0 {
		return nil, store.ErrNotFound
	}
	return lines, nil
}

// Drop deletes every line of the room.
func (s *SQLiteStore) Drop(ctx context.Context, room string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcript_lines WHERE room = ?`, room); err != nil {
		return fmt.Errorf("delete transcript lines: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements store.TranscriptLog
var _ store.TranscriptLog = (*SQLiteStore)(nil)
