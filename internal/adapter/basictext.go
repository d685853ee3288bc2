package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tg-ingest/internal/source"
	"tg-ingest/internal/store"
)

// SourceTypeBasicText identifies the generic text-channel adapter.
const SourceTypeBasicText = "basic_text"

func init() {
	registerBuiltin(SourceTypeBasicText, NewBasicText)
}

// BasicText is the reference adapter: it ingests plain text channels,
// optionally filtering on keywords, and skips items without text content.
// New channel-specific adapters follow this file's shape.
type BasicText struct {
	channelID   string
	channelName string
	opts        Options

	client source.Client
}

func NewBasicText(channelID, channelName string, opts Options) (Adapter, error) {
	if channelID == "" {
		return nil, errors.New("basic_text: channel id is required")
	}
	if channelName == "" {
		return nil, errors.New("basic_text: channel name is required")
	}
	return &BasicText{channelID: channelID, channelName: channelName, opts: opts}, nil
}

// Connect resolves the configured channel through the client and retains the
// handle for Fetch.
func (a *BasicText) Connect(ctx context.Context, client source.Client) error {
	if _, err := client.Channel(ctx, a.channelID); err != nil {
		return fmt.Errorf("basic_text: connect channel '%s': %w", a.channelID, err)
	}
	a.client = client
	return nil
}

func (a *BasicText) Fetch(_ context.Context, since int64, limit int) (source.ItemIterator, error) {
	if a.client == nil {
		return nil, errors.New("basic_text: not connected, call Connect first")
	}

	opts := source.IterOptions{}
	if since > 0 {
		// Incremental catch-up is unbounded; limit applies only to the
		// initial scrape of a channel that was never ingested.
		opts.MinID = since
	} else {
		opts.Limit = limit
	}
	return a.client.Items(a.channelID, opts), nil
}

// Transform maps a raw item onto the canonical record. Items without text,
// or without a keyword hit when keywords are configured, are skipped.
func (a *BasicText) Transform(item source.Item) (*store.Record, error) {
	if strings.TrimSpace(item.Text) == "" {
		return nil, nil
	}
	if len(a.opts.Keywords) > 0 && !a.matchesKeyword(item.Text) {
		return nil, nil
	}

	return &store.Record{
		SourceItemID: item.ID,
		Channel:      a.channelName,
		Timestamp:    item.Date,
		Text:         item.Text,
		HasMedia:     item.HasMedia,
	}, nil
}

func (a *BasicText) matchesKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range a.opts.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (a *BasicText) Describe() Info {
	return Info{ChannelID: a.channelID, ChannelName: a.channelName, Options: a.opts}
}
