package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tcrkp/internal/blob"
	"tcrkp/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// flipChecker reports a key as present once it has been checked more than
// after[key] times.
type flipChecker struct {
	mu    sync.Mutex
	after map[string]int
	calls map[string]int
	fail  map[string]bool
}

func newFlipChecker(after map[string]int) *flipChecker {
	return &flipChecker{after: after, calls: map[string]int{}, fail: map[string]bool{}}
}

func (c *flipChecker) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[key]++
	if c.fail[key] {
		return false, errors.New("transient")
	}
	n, ok := c.after[key]
	return ok && c.calls[key] > n, nil
}

func TestWaitCompletes(t *testing.T) {
	checker := newFlipChecker(map[string]int{"sample_0/mean_traj": 0, "sample_1/mean_traj": 2})
	metrics := observability.NewMetrics()
	w := Waiter{Interval: time.Millisecond, MaxAttempts: 10, Checker: checker, Recorder: metrics}

	remaining, err := w.Wait(context.Background(), []string{"sample_0/mean_traj", "sample_1/mean_traj"})
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, 1, checker.calls["sample_0/mean_traj"], "present keys are not re-polled")
	assert.Equal(t, 3, checker.calls["sample_1/mean_traj"])
}

func TestWaitStallsAfterMaxAttempts(t *testing.T) {
	checker := newFlipChecker(map[string]int{"a": 0})
	checker.fail["b"] = true
	w := Waiter{Interval: time.Millisecond, MaxAttempts: 3, Checker: checker}

	remaining, err := w.Wait(context.Background(), []string{"a", "b", "c"})
	require.ErrorIs(t, err, ErrWaitStalled)
	assert.Equal(t, []string{"b", "c"}, remaining)
	assert.Equal(t, 3, checker.calls["c"])
}

func TestWaitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	checker := newFlipChecker(nil)
	w := Waiter{Interval: time.Hour, MaxAttempts: 5, Checker: checker}

	done := make(chan error, 1)
	go func() {
		_, err := w.Wait(ctx, []string{"x"})
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not observe cancellation")
	}
}

func TestWaitEmptyKeys(t *testing.T) {
	remaining, err := Waiter{Checker: newFlipChecker(nil)}.Wait(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestBlobChecker(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	c := BlobChecker{Store: store}
	ok, err := c.Exists(ctx, "sample_0/mean_traj")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = store.Put(ctx, "sample_0/mean_traj", stringsReader("t,Ls\n"), blob.PutOptions{})
	require.NoError(t, err)
	ok, err = c.Exists(ctx, "sample_0/mean_traj")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFSNotifierWakesWaiter(t *testing.T) {
	dir := t.TempDir()
	n, err := NewFSNotifier([]string{dir}, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, n.Close()) }()

	target := filepath.Join(dir, "mean_traj")
	checker := fileChecker{}
	w := Waiter{Interval: time.Hour, MaxAttempts: 3, Checker: checker, Notifier: n}

	done := make(chan error, 1)
	go func() {
		_, err := w.Wait(context.Background(), []string{target})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("done\n"), 0o600))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("notifier did not wake the waiter")
	}
}

func TestFSNotifierMissingDir(t *testing.T) {
	_, err := NewFSNotifier([]string{filepath.Join(t.TempDir(), "missing")}, nil)
	assert.Error(t, err)
}

func TestFSNotifierCloseIdempotent(t *testing.T) {
	n, err := NewFSNotifier([]string{t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
}

type fileChecker struct{}

func (fileChecker) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
