package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Feed.PrimaryURL == "" {
		return nil, fmt.Errorf("feed.primary_url is required")
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	f := &cfg.Feed
	if f.CallTimeout == 0 {
		f.CallTimeout = Duration(10 * time.Second)
	}
	if f.PollInterval == 0 {
		f.PollInterval = Duration(100 * time.Millisecond)
	}
	if f.BackfillCount == 0 {
		f.BackfillCount = 350
	}
	if f.BackfillBatchSize == 0 {
		f.BackfillBatchSize = 100
	}
	if f.MaxConcurrentBatches == 0 {
		f.MaxConcurrentBatches = 2
	}
	if f.WindowCapacity == 0 {
		f.WindowCapacity = 500
	}
	if f.MaxBlocksPerPoll == 0 {
		f.MaxBlocksPerPoll = 20
	}
	if f.TPSWindow == 0 {
		f.TPSWindow = Duration(30 * time.Second)
	}
	if f.TPSHistorySize == 0 {
		f.TPSHistorySize = 60
	}
	if f.LatencySampleSize == 0 {
		f.LatencySampleSize = 100
	}
}
