package store

import "time"

// Record is the canonical, store-ready representation of one source item.
// Adapters produce it; the store owns IngestedAt and stamps it on insert.
//
// The pair (Channel, SourceItemID) is the natural key: source item ids are
// monotonically increasing per channel but not globally unique, so the
// channel name is required to disambiguate.
type Record struct {
	SourceItemID int64     `bson:"source_item_id" json:"id"`
	Channel      string    `bson:"channel" json:"channel"`
	Timestamp    time.Time `bson:"timestamp" json:"date"`
	Text         string    `bson:"text" json:"text"`
	HasMedia     bool      `bson:"has_media" json:"has_media"`
	IngestedAt   time.Time `bson:"ingested_at" json:"ingested_at,omitempty"`
}

// Outcome reports what an Upsert did. Duplicate writes are a normal part of
// re-running ingestion, so AlreadyExists is a success, not an error.
type Outcome int

const (
	Inserted Outcome = iota
	AlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// BatchResult carries the per-record outcome of an UpsertBatch call. Err is
// set only when the individual upsert failed; Outcome is meaningful only when
// Err is nil.
type BatchResult struct {
	Record  Record
	Outcome Outcome
	Err     error
}
