package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Retrying decorates another Store adding automatic retry around Upsert.
// It attempts the write up to the configured number of attempts, waiting the
// specified delay between retries, so transient back-end failures don't need
// retry logic sprinkled across the coordinator.
//
// ErrStoreUnavailable is a caller error and is never retried. Read-only
// methods pass through untouched.
//
// If attempts is < 1, it defaults to 1 (no retries).
// If delayMs is 0, it defaults to 1000ms.
type Retrying struct {
	inner    Store
	attempts int
	delay    time.Duration
}

// NewRetrying builds a Store with retry behaviour around the provided inner
// store. The returned value still fulfils the Store interface so it can be
// used transparently by the rest of the application.
func NewRetrying(inner Store, attempts int, delayMs int) Store {
	if inner == nil {
		return nil
	}
	if attempts < 1 {
		attempts = 1
	}
	if delayMs == 0 {
		delayMs = 1000
	}
	return &Retrying{
		inner:    inner,
		attempts: attempts,
		delay:    time.Duration(delayMs) * time.Millisecond,
	}
}

// Upsert forwards the call to the wrapped store retrying on failure.
func (r *Retrying) Upsert(ctx context.Context, rec Record) (Outcome, error) {
	var (
		outcome Outcome
		err     error
	)
	for attempt := 1; attempt <= r.attempts; attempt++ {
		outcome, err = r.inner.Upsert(ctx, rec)
		if err == nil {
			return outcome, nil
		}
		if errors.Is(err, ErrStoreUnavailable) {
			return 0, err
		}

		logrus.Warnf("store upsert failed (attempt %d/%d): %v", attempt, r.attempts, err)

		// Wait before next retry unless it's the final attempt.
		if attempt < r.attempts {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(r.delay):
			}
		}
	}
	return outcome, err
}

func (r *Retrying) UpsertBatch(ctx context.Context, recs []Record) []BatchResult {
	results := make([]BatchResult, 0, len(recs))
	for _, rec := range recs {
		outcome, err := r.Upsert(ctx, rec)
		results = append(results, BatchResult{Record: rec, Outcome: outcome, Err: err})
	}
	return results
}

func (r *Retrying) Count(ctx context.Context, channel string) (int64, error) {
	return r.inner.Count(ctx, channel)
}

func (r *Retrying) FindLatest(ctx context.Context, channel string) (*Record, error) {
	return r.inner.FindLatest(ctx, channel)
}
