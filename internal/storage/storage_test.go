package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"durood/internal/core"
	"durood/internal/log"
)

func sampleState() core.State {
	s := core.NewState(core.NewDate(2024, 1, 3))
	s.TotalCount = 12
	s.LifetimeTotal = 54
	s.History = []core.Entry{
		{ID: "b", Count: 10, Timestamp: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)},
		{ID: "a", Count: 2, Timestamp: time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)},
	}
	s.DailyTotals = []core.DailyTotal{{Date: core.NewDate(2024, 1, 1), Total: 42}}
	return s
}

type blobStore interface {
	Load(ctx context.Context) (*core.State, error)
	Save(ctx context.Context, s core.State) error
	Close() error
}

func checkRoundTrip(t *testing.T, st blobStore) {
	t.Helper()
	ctx := context.Background()

	got, err := st.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected empty store, got %+v err=%v", got, err)
	}

	want := sampleState()
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TotalCount != 12 || got.LifetimeTotal != 54 || len(got.History) != 2 || len(got.DailyTotals) != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if got.History[0].ID != "b" || !got.History[0].Timestamp.Equal(want.History[0].Timestamp) {
		t.Fatalf("history order or timestamp lost: %+v", got.History)
	}
	if got.DailyTotals[0].Date.String() != "2024-01-01" || got.LastResetDate.String() != "2024-01-03" {
		t.Fatalf("dates lost: %+v", got)
	}

	// last writer wins
	want.TotalCount = 0
	want.History = nil
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, _ = st.Load(ctx)
	if got.TotalCount != 0 || len(got.History) != 0 || got.History == nil {
		t.Fatalf("overwrite failed: %+v", got)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	checkRoundTrip(t, NewMemoryStore())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "durood.json")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	checkRoundTrip(t, fs)

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only the state file, found %d entries", len(entries))
	}
}

func TestFileStoreLogsAsStorage(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	log.SetDefault(log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}))

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "durood.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := fs.Save(ctx, sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := fs.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "component=storage") {
		t.Fatalf("expected storage component in %q", out)
	}
	if strings.Contains(out, "component=app") {
		t.Fatalf("component repeated in %q", out)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durood.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs, _ := NewFileStore(path)
	if _, err := fs.Load(context.Background()); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "durood.db"))
	if err != nil {
		t.Fatalf("new sqlite repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if ts, err := repo.LastSaved(ctx); err != nil || !ts.IsZero() {
		t.Fatalf("expected zero last saved, got %v err=%v", ts, err)
	}

	checkRoundTrip(t, repo)

	if ts, err := repo.LastSaved(ctx); err != nil || ts.IsZero() {
		t.Fatalf("expected last saved timestamp, got %v err=%v", ts, err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSQLiteRepositoryReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durood.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.Save(context.Background(), sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	repo.Close()

	// migrations must be a no-op the second time
	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	got, err := repo.Load(context.Background())
	if err != nil || got == nil || got.LifetimeTotal != 54 {
		t.Fatalf("unexpected state after reopen: %+v err=%v", got, err)
	}
}

func TestDecodeState(t *testing.T) {
	legacy := []byte(`{"totalCount":3,"history":[{"id":"x","count":3,"timestamp":"2024-01-01T08:00:00Z"}],"lastResetDate":"2024-01-01"}`)
	s, err := DecodeState(legacy)
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if s.Version != 1 || s.DailyTotals == nil || s.TotalCount != 3 {
		t.Fatalf("unexpected legacy decode: %+v", s)
	}

	if _, err := DecodeState([]byte(`{"version":99,"lastResetDate":"2024-01-01"}`)); !errors.Is(err, core.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}
