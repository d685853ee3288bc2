package store

import (
	"context"
	"sync"
	"time"
)

type recordKey struct {
	channel string
	itemID  int64
}

// Memory is an in-process Store and WatermarkStore. It backs runs configured
// with the memory storage type (export-only invocations) and is the fixture
// of choice in tests. Nothing survives the process.
type Memory struct {
	mu      sync.Mutex
	records map[recordKey]Record
	marks   map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[recordKey]Record),
		marks:   make(map[string]int64),
	}
}

func (s *Memory) Upsert(_ context.Context, rec Record) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{channel: rec.Channel, itemID: rec.SourceItemID}
	if _, ok := s.records[key]; ok {
		return AlreadyExists, nil
	}
	rec.IngestedAt = time.Now().UTC()
	s.records[key] = rec
	return Inserted, nil
}

func (s *Memory) UpsertBatch(ctx context.Context, recs []Record) []BatchResult {
	results := make([]BatchResult, 0, len(recs))
	for _, rec := range recs {
		outcome, err := s.Upsert(ctx, rec)
		results = append(results, BatchResult{Record: rec, Outcome: outcome, Err: err})
	}
	return results
}

func (s *Memory) Count(_ context.Context, channel string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if channel == "" {
		return int64(len(s.records)), nil
	}
	var n int64
	for key := range s.records {
		if key.channel == channel {
			n++
		}
	}
	return n, nil
}

func (s *Memory) FindLatest(_ context.Context, channel string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Record
	for key, rec := range s.records {
		if key.channel != channel {
			continue
		}
		if latest == nil || rec.SourceItemID > latest.SourceItemID {
			r := rec
			latest = &r
		}
	}
	return latest, nil
}

func (s *Memory) Get(_ context.Context, channel string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark, ok := s.marks[channel]
	return mark, ok, nil
}

func (s *Memory) Advance(_ context.Context, channel string, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mark, ok := s.marks[channel]; ok && itemID <= mark {
		return nil
	}
	s.marks[channel] = itemID
	return nil
}
