package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"tcrkp/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStore_PutGetHeadListDelete(t *testing.T) { //nolint:cyclop
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "sample_0/input.json", bytes.NewReader([]byte("{}")), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"sample": "0"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "sample_0/input.json" || info.Size != 2 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "sample_0/input.json", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	h, err := store.Head(ctx, "sample_0/input.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	g, rc, err := store.Get(ctx, "sample_0/input.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "{}" || g.ETag != h.ETag || g.Metadata["sample"] != "0" {
		t.Fatalf("unexpected get artifacts %+v", g)
	}
	list, err := store.List(ctx, "sample_0/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "sample_0/input.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	ok, err := store.Delete(ctx, "sample_0/input.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "sample_0/input.json"); err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "sample_0/input.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ExternalFilesVisible(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	dir, err := store.Path("sample_3")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mean_traj"), []byte("1 2 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := store.Head(ctx, "sample_3/mean_traj")
	if err != nil {
		t.Fatalf("head external: %v", err)
	}
	if info.Size != 6 || info.ETag != "" {
		t.Fatalf("unexpected info %+v", info)
	}
	exists, err := core.Exists(ctx, store, "sample_3/mean_traj")
	if err != nil || !exists {
		t.Fatalf("exists: %v %v", exists, err)
	}
	exists, err = core.Exists(ctx, store, "sample_4/mean_traj")
	if err != nil || exists {
		t.Fatalf("missing exists: %v %v", exists, err)
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %+v %v", list, err)
	}
	if _, err := store.Head(ctx, "sample_3"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("directory head should be ErrNotFound, got %v", err)
	}
}

func TestStore_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/b.meta"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestStore_PresignAndDriver(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("driver %s", store.Driver())
	}
	u, err := store.PresignURL(ctx, "sample_0/qsub.sh", core.SignedURLOptions{})
	if err != nil || u == "" {
		t.Fatalf("presign: %q %v", u, err)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if !filepath.IsAbs(store.Root()) {
		t.Fatalf("root should be absolute: %s", store.Root())
	}
}
