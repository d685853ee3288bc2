package ingest

import (
	"context"
	"sort"
	"time"

	"tg-ingest/internal/adapter"
	"tg-ingest/internal/config"
	"tg-ingest/internal/source"
	"tg-ingest/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// State names the phase a channel run is in. Failed is terminal and reachable
// from any non-terminal state; Completed only follows Persisting.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateConnecting State = "connecting"
	StateFetching   State = "fetching"
	StatePersisting State = "persisting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Summary is the outcome of one channel run. Counts are always populated,
// even when the run failed part-way, so partial success stays visible.
type Summary struct {
	RunID          string
	Channel        string
	State          State
	ItemsFetched   int
	ItemsPersisted int
	ItemsDuplicate int
	ItemsSkipped   int
	ItemsFailed    int
	FinalWatermark int64
	Elapsed        time.Duration
	Err            error
}

// Result pairs a run summary with the canonical records collected during the
// run. Records is populated only when collection is enabled (export).
type Result struct {
	Summary Summary
	Records []store.Record
}

// Coordinator orchestrates per-channel ingestion runs: resolve the adapter,
// determine the resume point, drive the fetch loop and persist each record.
// Adapters never touch the store and the coordinator never touches the
// external source directly; that isolation is what keeps resume correct as
// adapters vary.
type Coordinator struct {
	cfg      *config.Config
	client   source.Client
	registry *adapter.Registry
	store    store.Store
	marks    store.WatermarkStore

	// collect keeps transformed records in memory for the export snapshot.
	collect bool
}

// New constructs a fully-initialised Coordinator.
//
// The caller supplies the client, registry and stores so different
// configurations (e.g. memory store for tests) can be injected as needed.
func New(cfg *config.Config, client source.Client, reg *adapter.Registry, st store.Store, marks store.WatermarkStore) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		client:   client,
		registry: reg,
		store:    st,
		marks:    marks,
		collect:  cfg.Export.Enabled,
	}
}

// RunAll ingests every configured channel, at most cfg.Workers concurrently.
// Channel runs are independent: a failed run surfaces in its own summary and
// never blocks or aborts a sibling.
func (c *Coordinator) RunAll(ctx context.Context) []Result {
	results := make([]Result, len(c.cfg.Channels))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, ch := range c.cfg.Channels {
		i, ch := i, ch
		g.Go(func() error {
			results[i] = c.RunChannel(ctx, ch)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in summaries

	return results
}

// RunChannel executes one ingestion run for the given channel.
func (c *Coordinator) RunChannel(ctx context.Context, ch config.ChannelConfig) Result {
	started := time.Now()
	summary := Summary{
		RunID:   uuid.NewString(),
		Channel: ch.Name,
		State:   StateIdle,
	}
	log := logrus.WithFields(logrus.Fields{
		"run":     summary.RunID[:8],
		"channel": ch.Name,
	})

	fail := func(err error) Result {
		at := summary.State
		summary.State = StateFailed
		summary.Err = err
		summary.Elapsed = time.Since(started)
		// Progress persisted before the failure is durable and resumable,
		// so the summary still reports the watermark. Best effort, on a
		// detached context so a cancelled run can report it too.
		if mark, ok, werr := c.marks.Get(context.Background(), ch.Name); werr == nil && ok {
			summary.FinalWatermark = mark
		}
		log.Errorf("run failed in state %s: %v", at, err)
		return Result{Summary: summary}
	}

	// Resolving
	summary.State = StateResolving
	opts := &adapter.Options{Keywords: ch.Keywords, SaveResults: ch.SaveResults}
	ad, err := c.registry.Resolve(ch.Type, ch.ID, ch.Name, opts)
	if err != nil {
		return fail(err)
	}

	// Connecting
	summary.State = StateConnecting
	if err := ad.Connect(ctx, c.client); err != nil {
		return fail(err)
	}

	// Fetching
	summary.State = StateFetching
	save := ad.Describe().Options.Save()

	var since int64
	if save {
		mark, ok, err := c.marks.Get(ctx, ch.Name)
		if err != nil {
			return fail(err)
		}
		if ok {
			since = mark
			log.Infof("resuming from watermark %d", mark)
		} else {
			log.Infof("no watermark, initial scrape bounded to %d items", ch.Limit)
		}
	}

	it, err := ad.Fetch(ctx, since, ch.Limit)
	if err != nil {
		return fail(err)
	}

	var records []store.Record

	// advanceOK turns false on the first persist failure: later items are
	// still persisted, but the watermark must never move past an id whose
	// record is missing, or that record would be skipped forever on resume.
	advanceOK := true

	persist := func(rec store.Record) {
		summary.State = StatePersisting
		outcome, err := c.store.Upsert(ctx, rec)
		if err != nil {
			log.Warnf("persist item %d failed, continuing: %v", rec.SourceItemID, err)
			summary.ItemsFailed++
			advanceOK = false
			return
		}
		switch outcome {
		case store.Inserted:
			summary.ItemsPersisted++
		case store.AlreadyExists:
			summary.ItemsDuplicate++
		}

		if advanceOK {
			if err := c.marks.Advance(ctx, ch.Name, rec.SourceItemID); err != nil {
				log.Warnf("watermark advance to %d failed: %v", rec.SourceItemID, err)
				advanceOK = false
			}
		}
	}

	// An initial scrape arrives newest first, but records must reach the
	// store in ascending id order: the watermark may only trail ids whose
	// records are durable, and persisting the maximum first would put it
	// past any later failure. The batch is bounded by the channel limit, so
	// it is buffered and persisted ascending after the fetch. Incremental
	// catch-up already arrives ascending and persists as it streams.
	buffered := save && since == 0
	var pending []store.Record

	for it.Next(ctx) {
		item := it.Item()
		summary.ItemsFetched++

		rec, err := ad.Transform(item)
		if err != nil {
			log.Warnf("transform item %d failed, skipping: %v", item.ID, err)
			summary.ItemsSkipped++
			continue
		}
		if rec == nil {
			summary.ItemsSkipped++
			continue
		}

		if c.collect {
			records = append(records, *rec)
		}
		if !save {
			continue
		}
		if buffered {
			pending = append(pending, *rec)
			continue
		}
		persist(*rec)
	}
	if err := it.Err(); err != nil {
		// Mid-iteration failure or cancellation. Everything persisted and
		// watermarked so far is durable; the next run resumes behind it.
		return fail(err)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].SourceItemID < pending[j].SourceItemID
	})
	for _, rec := range pending {
		persist(rec)
	}

	if save {
		if mark, ok, err := c.marks.Get(ctx, ch.Name); err == nil && ok {
			summary.FinalWatermark = mark
		}
	}

	summary.State = StateCompleted
	summary.Elapsed = time.Since(started)
	log.Infof("[OK] fetched=%d persisted=%d duplicate=%d skipped=%d failed=%d watermark=%d time=%.2fs",
		summary.ItemsFetched, summary.ItemsPersisted, summary.ItemsDuplicate,
		summary.ItemsSkipped, summary.ItemsFailed, summary.FinalWatermark,
		summary.Elapsed.Seconds())

	return Result{Summary: summary, Records: records}
}

// Collect groups the records of the completed runs by channel name for
// export. Failed runs and runs that produced nothing are left out so the
// snapshot only carries channels with data.
func Collect(results []Result) map[string][]store.Record {
	data := make(map[string][]store.Record)
	for _, r := range results {
		if r.Summary.State != StateCompleted || len(r.Records) == 0 {
			continue
		}
		data[r.Summary.Channel] = r.Records
	}
	return data
}
