package source

import (
	"context"
	"sort"
	"time"
)

// Item is one raw message as exposed by the external source. Ids increase
// monotonically within a channel; Date is when the item was produced at the
// source, not when it was fetched.
type Item struct {
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	Text     string    `json:"text"`
	HasMedia bool      `json:"has_media"`
}

// ChannelInfo describes a resolved channel.
type ChannelInfo struct {
	Ref   string
	Title string
}

// IterOptions narrows an item iteration. Exactly one of the two modes is in
// effect at a time:
//
//   - MinID > 0: yield only items with id strictly greater than MinID, in
//     ascending id order. Limit is ignored (incremental catch-up).
//   - MinID == 0: yield at most Limit items, newest first (bounded initial
//     scrape). Limit == 0 means no bound.
type IterOptions struct {
	MinID int64
	Limit int
}

// ItemIterator lazily walks a channel's items:
//
//	for it.Next(ctx) {
//	    handle(it.Item())
//	}
//	if err := it.Err(); err != nil { ... }
//
// Next returns false on exhaustion, error or context cancellation; Err
// distinguishes the cases.
type ItemIterator interface {
	Next(ctx context.Context) bool
	Item() Item
	Err() error
}

// Client is the boundary to the external messaging network. Session
// management, authentication and reconnects are owned by the implementation;
// the ingestion core only resolves channels and iterates their items.
type Client interface {
	// Channel resolves the channel reference and confirms it is reachable.
	Channel(ctx context.Context, ref string) (ChannelInfo, error)

	// Items returns a lazy iterator over the channel's items, ordered per
	// IterOptions.
	Items(ref string, opts IterOptions) ItemIterator
}

// Slice returns an ItemIterator over a fixed item set, applying the same
// ordering and bounding rules a live transport applies. Replay dumps and test
// fakes both go through it so the resume semantics are exercised uniformly.
func Slice(items []Item, opts IterOptions) ItemIterator {
	return &sliceIterator{items: applyOptions(items, opts)}
}

func applyOptions(items []Item, opts IterOptions) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if opts.MinID > 0 {
		// Incremental catch-up: everything after the resume point, ascending.
		idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].ID > opts.MinID })
		return sorted[idx:]
	}

	// Initial scrape: newest first, bounded by Limit.
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	if opts.Limit > 0 && len(sorted) > opts.Limit {
		sorted = sorted[:opts.Limit]
	}
	return sorted
}

type sliceIterator struct {
	items []Item
	pos   int
	cur   Item
	err   error
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	select {
	case <-ctx.Done():
		it.err = ctx.Err()
		return false
	default:
	}
	if it.pos >= len(it.items) {
		return false
	}
	it.cur = it.items[it.pos]
	it.pos++
	return true
}

func (it *sliceIterator) Item() Item { return it.cur }

func (it *sliceIterator) Err() error { return it.err }
