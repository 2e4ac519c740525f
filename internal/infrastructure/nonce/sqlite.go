package nonce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const memoryDSN = ":memory:"

// SQLiteStore implements Store on a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. ":memory:" keeps it in process.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != memoryDSN {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// every connection to :memory: is a separate database
	if path == memoryDSN {
		conn.SetMaxOpenConns(1)
	} else if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable sqlite WAL mode: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS nonces (
		account TEXT PRIMARY KEY,
		nonce   INTEGER NOT NULL
	)`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create nonces table: %w", err)
	}

	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) Committed(ctx context.Context, key string) (uint64, bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT nonce FROM nonces WHERE account = ?`, key).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read nonce: %w", err)
	}
	return uint64(n), true, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, key string, nonce uint64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO nonces (account, nonce) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET nonce = MAX(nonce, excluded.nonce)`, key, int64(nonce))
	if err != nil {
		return fmt.Errorf("failed to commit nonce: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nonces WHERE account = ?`, key); err != nil {
		return fmt.Errorf("failed to reset nonce: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", path, err)
	}
	return nil
}
