package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tcrkp/internal/blob"
	"tcrkp/internal/observability"
)

// Default wait parameters.
const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 720
)

// Checker reports whether an expected output exists.
type Checker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// BlobChecker checks keys in a blob store.
type BlobChecker struct {
	Store blob.Store
}

// Exists implements Checker.
func (c BlobChecker) Exists(ctx context.Context, key string) (bool, error) {
	return blob.Exists(ctx, c.Store, key)
}

// Notifier delivers hints that outputs may have changed, so the waiter can
// poll before the interval elapses.
type Notifier interface {
	Events() <-chan struct{}
	Close() error
}

// Waiter polls a Checker until every key exists or MaxAttempts polls have
// been made.
type Waiter struct {
	Interval    time.Duration
	MaxAttempts int
	Checker     Checker
	Notifier    Notifier
	Logger      *zap.Logger
	Recorder    observability.Recorder
}

// Wait blocks until all keys exist. It returns the keys still missing
// together with ErrWaitStalled after the last attempt, or with the context
// error on cancellation. Check errors count as missing for that poll.
func (w Waiter) Wait(ctx context.Context, keys []string) ([]string, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	attempts := w.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := w.Recorder
	if rec == nil {
		rec = observability.Nop{}
	}
	var events <-chan struct{}
	if w.Notifier != nil {
		events = w.Notifier.Events()
	}

	pending := append([]string(nil), keys...)
	for attempt := 1; ; attempt++ {
		pending = w.missing(ctx, logger, pending)
		rec.WaitPoll(len(pending))
		logger.Info("files remaining", zap.Int("remaining", len(pending)), zap.Int("attempt", attempt))
		if len(pending) == 0 {
			return nil, nil
		}
		if attempt >= attempts {
			return pending, fmt.Errorf("%d outputs missing after %d polls: %w", len(pending), attempt, ErrWaitStalled)
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return pending, ctx.Err()
		case <-timer.C:
		case <-events:
			timer.Stop()
		}
	}
}

func (w Waiter) missing(ctx context.Context, logger *zap.Logger, keys []string) []string {
	var out []string
	for _, key := range keys {
		ok, err := w.Checker.Exists(ctx, key)
		if err != nil {
			logger.Warn("check output", zap.String("key", key), zap.Error(err))
		}
		if !ok {
			out = append(out, key)
		}
	}
	return out
}
