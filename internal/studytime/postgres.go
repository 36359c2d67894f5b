package studytime

import (
	"context"
	"fmt"

	"studybuddy/internal/db"
)

// PostgresStore implements Store on the study_time table.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

func (s *PostgresStore) Load(ctx context.Context, key string) (int64, error) {
	seconds, err := s.db.Queries.GetStudyTime(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load study time: %w", err)
	}
	return seconds, nil
}

func (s *PostgresStore) Add(ctx context.Context, key string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("negative study time delta %d", delta)
	}
	seconds, err := s.db.Queries.AddStudyTime(ctx, db.AddStudyTimeParams{Key: key, Seconds: delta})
	if err != nil {
		return 0, fmt.Errorf("add study time: %w", err)
	}
	return seconds, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
