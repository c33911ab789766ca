package config

import (
	"fmt"
	"time"

	redispub "github.com/vietddude/blockfeed/internal/infra/redis"
)

// Duration parses human-readable YAML values like "100ms" or "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig    `yaml:"server"`
	Feed    FeedConfig      `yaml:"feed"`
	Redis   redispub.Config `yaml:"redis"`
	Logging LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds status HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// FeedConfig holds settings for the upstream block feed.
type FeedConfig struct {
	PrimaryURL           string   `yaml:"primary_url"`
	FallbackURL          string   `yaml:"fallback_url"`
	CallTimeout          Duration `yaml:"call_timeout"`
	PollInterval         Duration `yaml:"poll_interval"`
	BackfillCount        int      `yaml:"backfill_count"`
	BackfillBatchSize    int      `yaml:"backfill_batch_size"`
	MaxConcurrentBatches int      `yaml:"max_concurrent_batches"`
	WindowCapacity       int      `yaml:"window_capacity"`
	MaxBlocksPerPoll     int      `yaml:"max_blocks_per_poll"`
	TPSWindow            Duration `yaml:"tps_window"`
	TPSHistorySize       int      `yaml:"tps_history_size"`
	LatencySampleSize    int      `yaml:"latency_sample_size"`
}
