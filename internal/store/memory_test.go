package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(channel string, id int64) Record {
	return Record{
		SourceItemID: id,
		Channel:      channel,
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Text:         fmt.Sprintf("message %d", id),
	}
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	rec := testRecord("news", 42)

	outcome, err := s.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	outcome, err = s.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, outcome)

	n, err := s.Count(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryUpsertStampsIngestedAt(t *testing.T) {
	s := NewMemory()
	before := time.Now().UTC()

	_, err := s.Upsert(context.Background(), testRecord("news", 1))
	require.NoError(t, err)

	latest, err := s.FindLatest(context.Background(), "news")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.IngestedAt.Before(before), "IngestedAt should be set by the store")
}

func TestMemoryConcurrentUpsertRace(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	const writers = 16
	outcomes := make([]Outcome, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord("news", 7)
			rec.Text = fmt.Sprintf("payload from writer %d", i)
			outcomes[i], errs[i] = s.Upsert(ctx, rec)
		}(i)
	}
	wg.Wait()

	inserted := 0
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i], "writer %d", i)
		if outcomes[i] == Inserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted, "exactly one writer should win the insert")

	n, err := s.Count(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryUpsertBatchPartialOutcomes(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.Upsert(ctx, testRecord("news", 2))
	require.NoError(t, err)

	results := s.UpsertBatch(ctx, []Record{
		testRecord("news", 1),
		testRecord("news", 2),
		testRecord("news", 3),
	})
	require.Len(t, results, 3)
	assert.Equal(t, Inserted, results[0].Outcome)
	assert.Equal(t, AlreadyExists, results[1].Outcome)
	assert.Equal(t, Inserted, results[2].Outcome)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestMemoryCountByChannel(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		_, err := s.Upsert(ctx, testRecord("alpha", id))
		require.NoError(t, err)
	}
	_, err := s.Upsert(ctx, testRecord("beta", 1))
	require.NoError(t, err)

	n, err := s.Count(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMemoryFindLatest(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	latest, err := s.FindLatest(ctx, "news")
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, id := range []int64{3, 9, 5} {
		_, err := s.Upsert(ctx, testRecord("news", id))
		require.NoError(t, err)
	}

	latest, err = s.FindLatest(ctx, "news")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(9), latest.SourceItemID)
}

func TestMemoryWatermarkMonotonic(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "news")
	require.NoError(t, err)
	assert.False(t, ok, "fresh channel has no watermark")

	// Advance in arbitrary order; the watermark must settle on the max.
	for _, id := range []int64{5, 2, 9, 9, 1, 7} {
		require.NoError(t, s.Advance(ctx, "news", id))
	}

	mark, ok, err := s.Get(ctx, "news")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), mark)
}

func TestMemoryWatermarkPerChannel(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Advance(ctx, "alpha", 10))
	require.NoError(t, s.Advance(ctx, "beta", 3))

	mark, ok, err := s.Get(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), mark)

	mark, ok, err = s.Get(ctx, "beta")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), mark)
}
