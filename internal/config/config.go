package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	yaml "gopkg.in/yaml.v2"
)

// TelegramConfig carries the credentials for the external messaging network.
// The session/transport handling itself lives behind the source.Client
// boundary; these values are only plumbed through to it.
type TelegramConfig struct {
	APIID   string `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
	Session string `yaml:"session"`
}

type MongoConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	Username            string `yaml:"username"`
	Password            string `yaml:"password"`
	AuthDB              string `yaml:"auth_db"`
	Database            string `yaml:"database"`
	Collection          string `yaml:"collection"`
	WatermarkCollection string `yaml:"watermark_collection"`
}

type StorageConfig struct {
	// Type selects the persistence back-end: "mongo" or "memory". The
	// memory back-end keeps nothing across runs and exists for export-only
	// invocations and local experiments.
	Type string `yaml:"type"`
}

type SourceConfig struct {
	Type string `yaml:"type"`
	// Dir is the directory holding per-channel JSON dumps when the replay
	// source is selected.
	Dir string `yaml:"dir"`
}

// ChannelConfig describes one logical channel to ingest. Name is the logical
// channel name used as the store key; ID is the source-native reference
// (e.g. an @username). Type selects the registered adapter implementation.
type ChannelConfig struct {
	Name        string   `yaml:"name"`
	ID          string   `yaml:"id"`
	Type        string   `yaml:"type"`
	Limit       int      `yaml:"limit"`
	Keywords    []string `yaml:"keywords"`
	SaveResults *bool    `yaml:"save_results"`
}

type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type Config struct {
	Telegram TelegramConfig  `yaml:"telegram"`
	Mongo    MongoConfig     `yaml:"mongo"`
	Storage  StorageConfig   `yaml:"storage"`
	Source   SourceConfig    `yaml:"source"`
	Channels []ChannelConfig `yaml:"channels"`
	Retry    RetryConfig     `yaml:"retry"`
	Export   ExportConfig    `yaml:"export"`
	// Workers defines how many channels are ingested concurrently. If not
	// set, it defaults to the number of available CPUs.
	Workers int `yaml:"workers"`
}

// DefaultLimit bounds the initial scrape of a channel that has never been
// ingested before. Incremental catch-up runs ignore it.
const DefaultLimit = 100

// Load reads and unmarshals the configuration file located at the given path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Basic validation
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("at least one channel must be defined")
	}
	seen := make(map[string]bool, len(cfg.Channels))
	for i, c := range cfg.Channels {
		if c.Name == "" {
			return nil, fmt.Errorf("channel at index %d is missing name", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate channel name: %s", c.Name)
		}
		seen[c.Name] = true
		if c.ID == "" {
			return nil, fmt.Errorf("channel '%s' is missing id", c.Name)
		}
		if c.Type == "" {
			return nil, fmt.Errorf("channel '%s' is missing type", c.Name)
		}
		if c.Limit == 0 {
			cfg.Channels[i].Limit = DefaultLimit
		}
	}

	// Validate storage configuration
	switch cfg.Storage.Type {
	case "", "mongo":
		cfg.Storage.Type = "mongo"
		if cfg.Mongo.Database == "" {
			return nil, fmt.Errorf("mongo.database is required when storage type is mongo")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	switch cfg.Source.Type {
	case "", "replay":
		cfg.Source.Type = "replay"
		if cfg.Source.Dir == "" {
			return nil, fmt.Errorf("source.dir is required when source type is replay")
		}
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Source.Type)
	}

	// Default mongo values if not set
	if cfg.Mongo.Host == "" {
		cfg.Mongo.Host = "localhost"
	}
	if cfg.Mongo.Port == 0 {
		cfg.Mongo.Port = 27017
	}
	if cfg.Mongo.AuthDB == "" {
		cfg.Mongo.AuthDB = "admin"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "telegram_messages"
	}
	if cfg.Mongo.WatermarkCollection == "" {
		cfg.Mongo.WatermarkCollection = "watermarks"
	}

	// Default retry values if not set
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.DelayMS == 0 {
		cfg.Retry.DelayMS = 1500
	}

	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "data"
	}

	// Default workers to the number of CPUs when not provided or invalid.
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.Workers < 1 {
			cfg.Workers = 1
		}
	}

	return &cfg, nil
}
