package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tcrkp/internal/runs"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	ctx := context.Background()
	run := runs.Run{
		ID:       "run-1",
		Scenario: "competing",
		Steps:    4,
		Status:   runs.StatusSubmitted,
		Samples:  []runs.Sample{{Index: 0, SelfLigands: 420, Dir: "sample_0"}},
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	run.Status = runs.StatusComplete
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload sqlite store: %v", err)
	}
	defer func() { _ = reloaded.Close() }()
	got, err := reloaded.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != runs.StatusComplete || len(got.Samples) != 1 || got.Samples[0].SelfLigands != 420 {
		t.Fatalf("unexpected reloaded run %+v", got)
	}
	list, err := reloaded.ListRuns(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list %+v err %v", list, err)
	}
	if reloaded.Path() != path {
		t.Fatalf("expected path %s, got %s", path, reloaded.Path())
	}
	if reloaded.DB() == nil {
		t.Fatalf("expected db handle")
	}
}

func TestSQLiteStorePersistError(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_ = store.DB().Close()
	if err := store.SaveRun(context.Background(), runs.Run{ID: "r"}); err == nil {
		t.Fatalf("expected persist error after closing db")
	}
}

func TestSQLiteStoreRejectsCorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES(?,?)`, "run:bad", []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path); err == nil {
		t.Fatalf("expected decode error on reload")
	}
}

func TestSQLiteStoreIgnoresForeignBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES(?,?)`, "settings", []byte("{}")); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	_ = store.Close()
	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer func() { _ = reloaded.Close() }()
	list, _ := reloaded.ListRuns(context.Background())
	if len(list) != 0 {
		t.Fatalf("expected no runs, got %+v", list)
	}
}
