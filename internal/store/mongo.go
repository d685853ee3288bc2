package store

import (
	"context"
	"fmt"
	"time"

	"tg-ingest/internal/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo persists canonical records in a MongoDB collection and keeps a
// companion watermark collection. Deduplication relies on a unique compound
// index on (channel, source_item_id): a racing insert that hits the index is
// reported as AlreadyExists, never as an error.
//
// The zero value is unusable; build one with NewMongo and call Connect before
// any other method.
type Mongo struct {
	cfg   config.MongoConfig
	retry config.RetryConfig

	client     *mongo.Client
	records    *mongo.Collection
	watermarks *mongo.Collection
}

// NewMongo builds an unconnected store from configuration. Connect must be
// called before the store is used; every other method returns
// ErrStoreUnavailable until then.
func NewMongo(cfg config.MongoConfig, retry config.RetryConfig) *Mongo {
	return &Mongo{cfg: cfg, retry: retry}
}

// Connect establishes the MongoDB connection with retry support, verifies it
// with a ping and ensures the uniqueness index backing deduplication exists.
func (s *Mongo) Connect(ctx context.Context) error {
	opts := options.Client().
		SetHosts([]string{fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)})

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = opts.SetAuth(options.Credential{
			Username:   s.cfg.Username,
			Password:   s.cfg.Password,
			AuthSource: s.cfg.AuthDB,
		})
		logrus.Infof("connecting to MongoDB at %s:%d with authentication", s.cfg.Host, s.cfg.Port)
	} else {
		logrus.Infof("connecting to MongoDB at %s:%d without authentication", s.cfg.Host, s.cfg.Port)
	}

	attempts := s.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		client *mongo.Client
		err    error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		client, err = mongo.Connect(ctx, opts)
		if err == nil {
			err = client.Ping(ctx, readpref.Primary())
			if err == nil {
				break
			}
			_ = client.Disconnect(ctx)
			client = nil
		}

		logrus.Warnf("mongo connect failed (attempt %d/%d): %v", attempt, attempts, err)

		// Don't wait after the final attempt
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(s.retry.DelayMS) * time.Millisecond):
			}
		}
	}
	if client == nil {
		return fmt.Errorf("mongo connect: %w", err)
	}

	db := client.Database(s.cfg.Database)
	s.client = client
	s.records = db.Collection(s.cfg.Collection)
	s.watermarks = db.Collection(s.cfg.WatermarkCollection)

	// The compound index is what makes concurrent upserts of the same key
	// safe: the loser of the race gets a duplicate-key error, which Upsert
	// translates to AlreadyExists.
	_, err = s.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "channel", Value: 1}, {Key: "source_item_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure index: %w", err)
	}

	logrus.Infof("connected to MongoDB database '%s', collection '%s'", s.cfg.Database, s.cfg.Collection)
	return nil
}

// Close releases the underlying client connection.
func (s *Mongo) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.records = nil
	s.watermarks = nil
	return err
}

func (s *Mongo) key(rec Record) bson.M {
	return bson.M{"channel": rec.Channel, "source_item_id": rec.SourceItemID}
}

// Upsert stores the record unless a copy with the same (channel,
// source_item_id) already exists. The existence pre-check keeps the common
// re-run path cheap; the unique index catches the race where another writer
// inserts between the check and the insert.
func (s *Mongo) Upsert(ctx context.Context, rec Record) (Outcome, error) {
	if s.records == nil {
		return 0, ErrStoreUnavailable
	}

	err := s.records.FindOne(ctx, s.key(rec)).Err()
	switch {
	case err == nil:
		return AlreadyExists, nil
	case err != mongo.ErrNoDocuments:
		return 0, fmt.Errorf("mongo lookup %s/%d: %w", rec.Channel, rec.SourceItemID, err)
	}

	rec.IngestedAt = time.Now().UTC()
	if _, err := s.records.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a race against a concurrent writer; the record is stored.
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("mongo insert %s/%d: %w", rec.Channel, rec.SourceItemID, err)
	}
	return Inserted, nil
}

// UpsertBatch applies Upsert record by record so that one failure cannot
// abort the rest of a bulk load.
func (s *Mongo) UpsertBatch(ctx context.Context, recs []Record) []BatchResult {
	results := make([]BatchResult, 0, len(recs))
	for _, rec := range recs {
		outcome, err := s.Upsert(ctx, rec)
		results = append(results, BatchResult{Record: rec, Outcome: outcome, Err: err})
	}
	return results
}

func (s *Mongo) Count(ctx context.Context, channel string) (int64, error) {
	if s.records == nil {
		return 0, ErrStoreUnavailable
	}
	filter := bson.M{}
	if channel != "" {
		filter["channel"] = channel
	}
	return s.records.CountDocuments(ctx, filter)
}

func (s *Mongo) FindLatest(ctx context.Context, channel string) (*Record, error) {
	if s.records == nil {
		return nil, ErrStoreUnavailable
	}
	var rec Record
	err := s.records.FindOne(ctx, bson.M{"channel": channel},
		options.FindOne().SetSort(bson.D{{Key: "source_item_id", Value: -1}})).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find latest %s: %w", channel, err)
	}
	return &rec, nil
}

type watermarkDoc struct {
	Channel    string `bson:"channel"`
	LastItemID int64  `bson:"last_item_id"`
}

// Get returns the channel's watermark. When no watermark document exists
// (fresh deployment, or the collection was dropped) the value is recomputed
// from the record collection, so losing the watermark is never fatal.
func (s *Mongo) Get(ctx context.Context, channel string) (int64, bool, error) {
	if s.watermarks == nil {
		return 0, false, ErrStoreUnavailable
	}

	var doc watermarkDoc
	err := s.watermarks.FindOne(ctx, bson.M{"channel": channel}).Decode(&doc)
	if err == nil {
		return doc.LastItemID, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return 0, false, fmt.Errorf("mongo watermark %s: %w", channel, err)
	}

	latest, err := s.FindLatest(ctx, channel)
	if err != nil {
		return 0, false, err
	}
	if latest == nil {
		return 0, false, nil
	}
	logrus.Infof("watermark for '%s' recomputed from store: %d", channel, latest.SourceItemID)
	return latest.SourceItemID, true, nil
}

// Advance raises the watermark to itemID. The $max update is atomic, so
// concurrent advances and out-of-order ids within the monotonic guarantee
// all collapse to the maximum.
func (s *Mongo) Advance(ctx context.Context, channel string, itemID int64) error {
	if s.watermarks == nil {
		return ErrStoreUnavailable
	}
	_, err := s.watermarks.UpdateOne(ctx,
		bson.M{"channel": channel},
		bson.M{"$max": bson.M{"last_item_id": itemID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo advance watermark %s to %d: %w", channel, itemID, err)
	}
	return nil
}
