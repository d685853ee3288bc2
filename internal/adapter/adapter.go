package adapter

import (
	"context"

	"tg-ingest/internal/source"
	"tg-ingest/internal/store"
)

// Options configures one adapter instance. Fields are typed and optional;
// Extra carries implementation-specific settings the core ignores, so new
// adapters can grow options without touching this struct.
type Options struct {
	// Keywords filters items during Transform: when non-empty, only items
	// whose text contains at least one keyword survive.
	Keywords []string
	// SaveResults controls whether the coordinator persists this channel's
	// records. Unset means true.
	SaveResults *bool
	Extra       map[string]string
}

// Save reports whether persistence is enabled (the default when unset).
func (o Options) Save() bool {
	return o.SaveResults == nil || *o.SaveResults
}

// Info is the diagnostic description of a live adapter instance.
type Info struct {
	ChannelID   string
	ChannelName string
	Options     Options
}

// Constructor builds an adapter bound to one logical channel. channelID is
// the source-native reference, channelName the logical store key.
type Constructor func(channelID, channelName string, opts Options) (Adapter, error)

// Adapter implements source-specific fetch and transform logic for one
// channel. Implementations never talk to the persistence layer; the
// coordinator owns that side.
type Adapter interface {
	// Connect validates that the configured channel is reachable through
	// the client and retains the handle for later Fetch calls.
	Connect(ctx context.Context, client source.Client) error

	// Fetch returns a lazy iterator over the channel's items. With since > 0
	// it yields only ids strictly greater, ascending, ignoring limit
	// (incremental catch-up); with since == 0 it yields at most limit items,
	// newest first (bounded initial scrape).
	Fetch(ctx context.Context, since int64, limit int) (source.ItemIterator, error)

	// Transform maps a raw item to its canonical record. A (nil, nil)
	// return skips items that carry no useful content. Transform performs
	// no I/O.
	Transform(item source.Item) (*store.Record, error)

	// Describe reports the instance's channel binding and options.
	Describe() Info
}
