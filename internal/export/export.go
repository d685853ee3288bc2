// Package export writes the JSON snapshot artifact produced after a
// multi-channel ingestion run. The snapshot is a convenience hand-off for
// downstream consumers, not the system of record; the store keeps that role.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tg-ingest/internal/store"

	"github.com/sirupsen/logrus"
)

// Metadata describes the snapshot as a whole.
type Metadata struct {
	ScrapedAt     time.Time `json:"scraped_at"`
	TotalChannels int       `json:"total_channels"`
	TotalMessages int       `json:"total_messages"`
	Channels      []string  `json:"channels"`
}

// Snapshot is the on-disk artifact shape.
type Snapshot struct {
	Metadata Metadata                  `json:"metadata"`
	Data     map[string][]store.Record `json:"data"`
}

// Write stores the per-channel records as a timestamped JSON file under dir,
// creating the directory if needed, and returns the file path.
func Write(dir string, data map[string][]store.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create output directory: %w", err)
	}

	snap := Snapshot{
		Metadata: Metadata{
			ScrapedAt:     time.Now().UTC(),
			TotalChannels: len(data),
			Channels:      make([]string, 0, len(data)),
		},
		Data: data,
	}
	for channel, records := range data {
		snap.Metadata.Channels = append(snap.Metadata.Channels, channel)
		snap.Metadata.TotalMessages += len(records)
	}

	name := fmt.Sprintf("messages_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}

	logrus.Infof("exported %d messages from %d channels to %s",
		snap.Metadata.TotalMessages, snap.Metadata.TotalChannels, path)
	return path, nil
}
