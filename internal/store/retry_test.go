package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky fails Upsert a fixed number of times before delegating to Memory.
type flaky struct {
	*Memory
	failures int
	calls    int
	err      error
}

func (f *flaky) Upsert(ctx context.Context, rec Record) (Outcome, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return f.Memory.Upsert(ctx, rec)
}

func TestRetryingRecoversFromTransientFailure(t *testing.T) {
	inner := &flaky{Memory: NewMemory(), failures: 2, err: errors.New("transient")}
	s := NewRetrying(inner, 3, 1)

	outcome, err := s.Upsert(context.Background(), testRecord("news", 1))
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingExhaustsAttempts(t *testing.T) {
	boom := errors.New("still down")
	inner := &flaky{Memory: NewMemory(), failures: 10, err: boom}
	s := NewRetrying(inner, 3, 1)

	_, err := s.Upsert(context.Background(), testRecord("news", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingDoesNotRetryUnavailable(t *testing.T) {
	inner := &flaky{Memory: NewMemory(), failures: 10, err: ErrStoreUnavailable}
	s := NewRetrying(inner, 3, 1)

	_, err := s.Upsert(context.Background(), testRecord("news", 1))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, inner.calls, "caller errors are not worth retrying")
}

func TestRetryingBatchIsPerRecord(t *testing.T) {
	inner := &flaky{Memory: NewMemory(), failures: 1, err: errors.New("transient")}
	s := NewRetrying(inner, 2, 1)

	results := s.UpsertBatch(context.Background(), []Record{
		testRecord("news", 1),
		testRecord("news", 2),
	})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestMongoUnconnectedIsUnavailable(t *testing.T) {
	m := &Mongo{}

	_, err := m.Upsert(context.Background(), testRecord("news", 1))
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = m.Count(context.Background(), "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = m.FindLatest(context.Background(), "news")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, _, err = m.Get(context.Background(), "news")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = m.Advance(context.Background(), "news", 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
