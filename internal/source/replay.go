package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ReplayClient serves items from per-channel JSON dump files, one
// `<channel>.json` array of items per channel reference. It lets the full
// pipeline run end to end without the live messaging network and doubles as
// the reference Client implementation for custom transports.
type ReplayClient struct {
	dir string
}

func NewReplayClient(dir string) *ReplayClient {
	return &ReplayClient{dir: dir}
}

func (c *ReplayClient) path(ref string) string {
	name := strings.TrimPrefix(ref, "@")
	return filepath.Join(c.dir, name+".json")
}

// Channel checks that a dump file exists for the reference.
func (c *ReplayClient) Channel(_ context.Context, ref string) (ChannelInfo, error) {
	p := c.path(ref)
	if _, err := os.Stat(p); err != nil {
		return ChannelInfo{}, fmt.Errorf("replay channel %s: %w", ref, err)
	}
	return ChannelInfo{Ref: ref, Title: strings.TrimPrefix(ref, "@")}, nil
}

// Items returns a lazy iterator over the channel's dump. The file is read on
// the first Next call so that building the iterator never does I/O.
func (c *ReplayClient) Items(ref string, opts IterOptions) ItemIterator {
	return &replayIterator{
		load: func() ([]Item, error) {
			data, err := os.ReadFile(c.path(ref))
			if err != nil {
				return nil, fmt.Errorf("replay read %s: %w", ref, err)
			}
			var items []Item
			if err := json.Unmarshal(data, &items); err != nil {
				return nil, fmt.Errorf("replay decode %s: %w", ref, err)
			}
			logrus.Debugf("replay loaded %d items for %s", len(items), ref)
			return applyOptions(items, opts), nil
		},
	}
}

type replayIterator struct {
	load   func() ([]Item, error)
	loaded bool
	items  []Item
	pos    int
	cur    Item
	err    error
}

func (it *replayIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	select {
	case <-ctx.Done():
		it.err = ctx.Err()
		return false
	default:
	}
	if !it.loaded {
		it.items, it.err = it.load()
		it.loaded = true
		if it.err != nil {
			return false
		}
	}
	if it.pos >= len(it.items) {
		return false
	}
	it.cur = it.items[it.pos]
	it.pos++
	return true
}

func (it *replayIterator) Item() Item { return it.cur }

func (it *replayIterator) Err() error { return it.err }
