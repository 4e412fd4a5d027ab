package resume

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite via modernc.org/sqlite (pure Go),
// the same driver internal/session uses for scan-state persistence.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) a SQLite-backed resume
// cache at dbPath. Use ":memory:" for a cache scoped to the process.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("resume: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("resume: ping database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS resume_cache (
			expression TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			cached_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("resume: create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get looks up the cached value for the given expression text.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM resume_cache WHERE expression = ?`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resume: scan row: %w", err)
	}
	return value, true, nil
}

// Put stores value under key, overwriting any existing entry.
func (s *SQLiteStore) Put(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO resume_cache (expression, value)
		VALUES (?, ?)
		ON CONFLICT(expression) DO UPDATE SET
			value     = excluded.value,
			cached_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("resume: put entry: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
