package studytime

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"studybuddy/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	got, err := s.Load(ctx, Key("missing"))
	require.NoError(t, err)
	assert.Zero(t, got)

	total, err := s.Add(ctx, Key("a"), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	total, err = s.Add(ctx, Key("a"), 41)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)

	_, err = s.Add(ctx, Key("b"), 5)
	require.NoError(t, err)

	got, err = s.Load(ctx, Key("a"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = s.Add(ctx, Key("a"), -1)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	testStore(t, openTestSQLite(t))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studybuddy.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.Add(ctx, Key("a"), 90)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx, Key("a"))
	require.NoError(t, err)
	assert.Equal(t, int64(90), got)
}

type fixedSource struct {
	mu  sync.Mutex
	ids []string
}

func (f *fixedSource) StudyingSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids
}

func TestTrackerTick(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)
	source := &fixedSource{ids: []string{"a", "b"}}
	tr := NewTracker(store, source, nil)

	tr.Tick(ctx)
	tr.Tick(ctx)
	source.ids = []string{"b"}
	tr.Tick(ctx)

	a, err := tr.Total(ctx, "a")
	require.NoError(t, err)
	b, err := tr.Total(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), a)
	assert.Equal(t, int64(3), b)
}

func TestTrackerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	tr := NewTracker(NewMemoryStore(), &fixedSource{}, nil)
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{125, "2m"},
		{3600, "1h"},
		{3725, "1h 2m"},
		{-3, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds), "%d seconds", tt.seconds)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StudyTimeConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(context.Background(), config.StudyTimeConfig{Backend: config.BackendSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = Open(context.Background(), config.StudyTimeConfig{Backend: "etcd"})
	assert.Error(t, err)
}
