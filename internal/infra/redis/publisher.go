package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/blockfeed/internal/core/domain"
)

// Config holds Redis connection configuration. An empty URL disables the
// publisher entirely.
type Config struct {
	URL             string `yaml:"url"`
	Password        string `yaml:"password"`
	SnapshotChannel string `yaml:"snapshot_channel"`
	BlockChannel    string `yaml:"block_channel"`
}

// Publisher mirrors engine events to Redis pub/sub channels so
// out-of-process display consumers can follow the feed without talking to
// the engine directly.
type Publisher struct {
	rdb             *redis.Client
	snapshotChannel string
	blockChannel    string
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if cfg.SnapshotChannel == "" {
		cfg.SnapshotChannel = "blockfeed:snapshots"
	}
	if cfg.BlockChannel == "" {
		cfg.BlockChannel = "blockfeed:blocks"
	}

	return &Publisher{
		rdb:             rdb,
		snapshotChannel: cfg.SnapshotChannel,
		blockChannel:    cfg.BlockChannel,
	}, nil
}

// PublishSnapshot publishes a metrics snapshot as JSON.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap domain.MetricsSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return p.rdb.Publish(ctx, p.snapshotChannel, payload).Err()
}

// PublishBlock publishes a new block as JSON.
func (p *Publisher) PublishBlock(ctx context.Context, block domain.Block) error {
	payload, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	return p.rdb.Publish(ctx, p.blockChannel, payload).Err()
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
