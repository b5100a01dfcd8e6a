// Package sqlite persists the run ledger in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tcrkp/internal/infra/persistence/memory"
	"tcrkp/internal/runs"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const bucketPrefix = "run:"

// Store keeps the ledger in memory and writes each saved run as a JSON
// payload row of the state table.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

var _ runs.Store = (*Store)(nil)

// NewStore opens (or creates) the database at path and loads existing runs.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "tcrkp.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{Runs: map[string]runs.Run{}}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if !strings.HasPrefix(bucket, bucketPrefix) {
			continue
		}
		var r runs.Run
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		snapshot.Runs[strings.TrimPrefix(bucket, bucketPrefix)] = r
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

// SaveRun stores r in memory, then upserts its row.
func (s *Store) SaveRun(ctx context.Context, r runs.Run) error {
	if err := s.Store.SaveRun(ctx, r); err != nil {
		return err
	}
	return s.persist(ctx, r.ID)
}

func (s *Store) persist(ctx context.Context, id string) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.Store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucketPrefix+id, data); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
