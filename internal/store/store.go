package store

import (
	"context"
	"errors"
)

// ErrStoreUnavailable is returned when a store method is invoked before the
// backing connection has been established. This is a caller error and is not
// retried internally.
var ErrStoreUnavailable = errors.New("store: not connected")

// Store defines the behaviour expected from any persistence back-end used by
// the ingestion coordinator (MongoDB, in-memory, etc.).
//
// Implementations must be safe for concurrent use: two concurrent Upsert
// calls with the same (channel, source item id) must leave exactly one stored
// copy and return a non-error outcome to both callers.
//
// Returning an error allows a retry decorator to be layered on top (see
// NewRetrying).
type Store interface {
	// Upsert persists the record if no copy with the same (Channel,
	// SourceItemID) exists yet and reports which of the two happened.
	Upsert(ctx context.Context, rec Record) (Outcome, error)

	// UpsertBatch applies Upsert to every record. A failure on one record
	// never aborts the others; the caller gets a per-record result list.
	UpsertBatch(ctx context.Context, recs []Record) []BatchResult

	// Count returns the number of stored records, optionally filtered by
	// channel (empty string counts everything).
	Count(ctx context.Context, channel string) (int64, error)

	// FindLatest returns the stored record with the highest source item id
	// for the channel, or nil when the channel has no records.
	FindLatest(ctx context.Context, channel string) (*Record, error)
}

// WatermarkStore tracks, per channel, the highest source item id known to be
// durably stored. It is a derived cache of "max stored id": losing it is
// recoverable by recomputing from the record store.
type WatermarkStore interface {
	// Get returns the watermark for the channel. The second return value is
	// false when no record has ever been stored for the channel.
	Get(ctx context.Context, channel string) (int64, bool, error)

	// Advance raises the watermark to itemID. Calls with an id at or below
	// the current watermark are no-ops; the watermark never moves backwards.
	Advance(ctx context.Context, channel string, itemID int64) error
}
