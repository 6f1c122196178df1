package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// SQLiteStore keeps each document as one row of the documents table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zerolog.Logger
}

// NewSQLiteStore opens (and creates) the database at path.
func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		)`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return body, nil
}

func (s *SQLiteStore) Save(ctx context.Context, name string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
