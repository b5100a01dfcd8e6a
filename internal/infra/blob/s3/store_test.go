package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"tcrkp/internal/blob/core"
)

func TestMockStore_RoundTrip(t *testing.T) { //nolint:cyclop
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("driver %s", store.Driver())
	}
	if _, err := store.Head(ctx, "sample_0/input.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Put(ctx, "sample_0/input.json", bytes.NewReader([]byte("{}")), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "sample_0/input.json", bytes.NewReader([]byte("{}")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := store.Put(ctx, "sample_1/input.json", bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	info, rc, err := store.Get(ctx, "sample_0/input.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" || info.ContentType != "application/json" {
		t.Fatalf("unexpected get %q %+v", body, info)
	}
	list, err := store.List(ctx, "sample_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "sample_0/input.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	u, err := store.PresignURL(ctx, "sample_0/input.json", core.SignedURLOptions{})
	if err != nil || !strings.Contains(u, "sample_0/input.json") {
		t.Fatalf("presign: %q %v", u, err)
	}
	put, err := store.PresignURL(ctx, "sample_0/mean_traj", core.SignedURLOptions{Method: "put", Expiry: time.Hour})
	if err != nil || !strings.Contains(put, "sample_0/mean_traj") || !strings.Contains(put, "X-Amz-Signature") {
		t.Fatalf("presign put: %q %v", put, err)
	}
	if _, err := store.PresignURL(ctx, "sample_0/input.json", core.SignedURLOptions{Method: "delete"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	ok, err := store.Delete(ctx, "sample_0/input.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "sample_0/input.json"); err != nil || ok {
		t.Fatalf("delete missing: %v %v", ok, err)
	}
}

func TestMockStore_Prefix(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	store.prefix = "runs/abc"
	if _, err := store.Put(ctx, "sample_0/qsub.sh", bytes.NewReader([]byte("#!/bin/sh")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := store.List(ctx, "sample_0/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "sample_0/qsub.sh" {
		t.Fatalf("prefix not stripped: %+v", list)
	}
	if _, err := store.Put(ctx, "/abs", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestMockStore_PresignedUploadLandsAtKey(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	u, err := store.PresignURL(ctx, "sample_0/mean_traj", core.SignedURLOptions{Method: "PUT"})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, strings.NewReader("0 1.5\n"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := store.client.Options().HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	info, rc, err := store.Get(ctx, "sample_0/mean_traj")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "0 1.5\n" || info.Size != 6 || info.ETag == "" {
		t.Fatalf("unexpected %q %+v", body, info)
	}
	list, err := store.List(ctx, "sample_0/")
	if err != nil || len(list) != 1 || list[0].Key != "sample_0/mean_traj" {
		t.Fatalf("list: %+v %v", list, err)
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	body, ok := decodeAWSChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"))
	if !ok || string(body) != "hello" {
		t.Fatalf("decode: %q %v", body, ok)
	}
	for _, in := range []string{"{\"steps\": 2}", "zz\r\nhello\r\n0\r\n", "9\r\nhello\r\n0\r\n"} {
		if _, ok := decodeAWSChunked([]byte(in)); ok {
			t.Fatalf("%q decoded", in)
		}
	}
}
