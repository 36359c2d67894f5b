package studytime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS study_time (
	key     TEXT PRIMARY KEY,
	seconds INTEGER NOT NULL DEFAULT 0
)`

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	load *sql.Stmt
	add  *sql.Stmt
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: every ":memory:" connection is its own database.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore creates the schema on an already-opened database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("create study_time table: %w", err)
	}

	s := &SQLiteStore{db: db}
	var err error
	s.load, err = db.Prepare(`SELECT seconds FROM study_time WHERE key = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	s.add, err = db.Prepare(`
		INSERT INTO study_time (key, seconds) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET seconds = seconds + excluded.seconds
		RETURNING seconds
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (int64, error) {
	var seconds int64
	err := s.load.QueryRowContext(ctx, key).Scan(&seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load study time: %w", err)
	}
	return seconds, nil
}

func (s *SQLiteStore) Add(ctx context.Context, key string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("negative study time delta %d", delta)
	}
	var seconds int64
	if err := s.add.QueryRowContext(ctx, key, delta).Scan(&seconds); err != nil {
		return 0, fmt.Errorf("add study time: %w", err)
	}
	return seconds, nil
}

func (s *SQLiteStore) Close() error {
	s.load.Close()
	s.add.Close()
	return s.db.Close()
}
