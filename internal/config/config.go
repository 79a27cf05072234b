// Package config defines the engine's configuration. Config is loaded
// from a YAML file (default: configs/config.yaml) with every field
// overridable via ENGINE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapping directly onto the YAML
// file structure.
type Config struct {
	Redis     RedisConfig     `mapstructure:"redis"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Market    MarketConfig    `mapstructure:"market"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RedisConfig points at the Redis instance backing the request stream,
// persistence stream, broadcast pub/sub and snapshot store.
type RedisConfig struct {
	Address         string `mapstructure:"address"`
	DB              int    `mapstructure:"db"`
	RequestStream   string `mapstructure:"request_stream"`
	ConsumerGroup   string `mapstructure:"consumer_group"`
	ConsumerName    string `mapstructure:"consumer_name"`
	PersistStream   string `mapstructure:"persist_stream"`
}

// SnapshotConfig tunes the periodic snapshot cadence and the per-kind TTLs.
type SnapshotConfig struct {
	IntervalOps  int           `mapstructure:"interval_ops"`
	DurableTTL   time.Duration `mapstructure:"durable_ttl"`
	TickerTTL    time.Duration `mapstructure:"ticker_ttl"`
}

// DedupConfig sizes the bounded LRU of recently-applied request ids.
type DedupConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// MarketConfig controls market-data broadcast shape.
type MarketConfig struct {
	DepthLevels int `mapstructure:"depth_levels"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with ENGINE_* env var overrides and
// fills in defaults for anything the file or environment leaves unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.request_stream", "engine_requests")
	v.SetDefault("redis.consumer_group", "engine")
	v.SetDefault("redis.consumer_name", "engine-0")
	v.SetDefault("redis.persist_stream", "persistence_events")
	v.SetDefault("snapshot.interval_ops", 10)
	v.SetDefault("snapshot.durable_ttl", time.Hour)
	v.SetDefault("snapshot.ticker_ttl", 5*time.Minute)
	v.SetDefault("dedup.cache_size", 10000)
	v.SetDefault("market.depth_levels", 50)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}
	if c.Redis.RequestStream == "" {
		return fmt.Errorf("redis.request_stream is required")
	}
	if c.Redis.ConsumerGroup == "" {
		return fmt.Errorf("redis.consumer_group is required")
	}
	if c.Snapshot.IntervalOps <= 0 {
		return fmt.Errorf("snapshot.interval_ops must be > 0")
	}
	if c.Dedup.CacheSize < 1000 {
		return fmt.Errorf("dedup.cache_size must be >= 1000")
	}
	if c.Market.DepthLevels <= 0 {
		return fmt.Errorf("market.depth_levels must be > 0")
	}
	return nil
}
