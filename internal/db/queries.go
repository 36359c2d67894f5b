package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const createStudyTimeTable = `
CREATE TABLE IF NOT EXISTS study_time (
    key        TEXT PRIMARY KEY,
    seconds    BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the tables used by the service.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, createStudyTimeTable); err != nil {
		return fmt.Errorf("create study_time table: %w", err)
	}
	return nil
}

const getStudyTime = `SELECT seconds FROM study_time WHERE key = $1`

// GetStudyTime returns the stored seconds for key, 0 if there is no row.
func (q *Queries) GetStudyTime(ctx context.Context, key string) (int64, error) {
	var seconds int64
	err := q.db.QueryRow(ctx, getStudyTime, key).Scan(&seconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return seconds, err
}

const addStudyTime = `
INSERT INTO study_time (key, seconds) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE
SET seconds = study_time.seconds + EXCLUDED.seconds, updated_at = now()
RETURNING seconds`

type AddStudyTimeParams struct {
	Key     string
	Seconds int64
}

// AddStudyTime increments the row for Key and returns the new total.
func (q *Queries) AddStudyTime(ctx context.Context, arg AddStudyTimeParams) (int64, error) {
	var seconds int64
	err := q.db.QueryRow(ctx, addStudyTime, arg.Key, arg.Seconds).Scan(&seconds)
	return seconds, err
}
