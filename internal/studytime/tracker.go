package studytime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studybuddy/internal/config"
	"studybuddy/internal/db"

	"go.uber.org/zap"
)

// Source lists the sessions that are studying right now.
type Source interface {
	StudyingSessions() []string
}

// Tracker adds one second per tick to every studying session's total.
type Tracker struct {
	store    Store
	source   Source
	interval time.Duration
	log      *zap.Logger
}

func NewTracker(store Store, source Source, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: store, source: source, interval: time.Second, log: log.Named("studytime")}
}

// Run ticks until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick persists one second for each studying session. A failed write is
// logged and that second is lost.
func (t *Tracker) Tick(ctx context.Context) {
	for _, id := range t.source.StudyingSessions() {
		if _, err := t.store.Add(ctx, Key(id), 1); err != nil {
			t.log.Warn("failed to persist study time", zap.String("session_id", id), zap.Error(err))
		}
	}
}

// Total returns the accumulated seconds for a session.
func (t *Tracker) Total(ctx context.Context, sessionID string) (int64, error) {
	return t.store.Load(ctx, Key(sessionID))
}

// FormatDuration renders seconds as "45s", "12m" or "1h 5m".
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 60 {
		if totalSeconds < 0 {
			totalSeconds = 0
		}
		return fmt.Sprintf("%ds", totalSeconds)
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

// Open connects the backend named in cfg.
func Open(ctx context.Context, cfg config.StudyTimeConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return OpenSQLite(cfg.SQLitePath)
	case config.BackendPostgres:
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(database), nil
	case config.BackendRedis:
		return ConnectRedis(ctx, cfg.RedisURL)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown study time backend %q", cfg.Backend)
}
