// Package engine ingests the block feed: a one-time historical backfill at
// startup followed by a fixed-interval live poll loop, feeding the block
// store and the metrics aggregator and fanning events out to subscribers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/blockfeed/internal/core/domain"
	"github.com/vietddude/blockfeed/internal/metrics"
	"github.com/vietddude/blockfeed/internal/store"
)

// Client is the feed surface the engine consumes.
type Client interface {
	HeadHeight(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error)
}

// SnapshotSink mirrors published snapshots and blocks out of process.
// Failures are logged and otherwise ignored.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snap domain.MetricsSnapshot) error
	PublishBlock(ctx context.Context, block domain.Block) error
}

// Config tunes the engine.
type Config struct {
	PollInterval         time.Duration
	BackfillCount        int
	BackfillBatchSize    int
	MaxConcurrentBatches int
	WindowCapacity       int
	MaxBlocksPerPoll     int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:         100 * time.Millisecond,
		BackfillCount:        350,
		BackfillBatchSize:    100,
		MaxConcurrentBatches: 2,
		WindowCapacity:       500,
		MaxBlocksPerPoll:     20,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BackfillCount <= 0 {
		c.BackfillCount = d.BackfillCount
	}
	if c.BackfillBatchSize <= 0 {
		c.BackfillBatchSize = d.BackfillBatchSize
	}
	if c.MaxConcurrentBatches <= 0 {
		c.MaxConcurrentBatches = d.MaxConcurrentBatches
	}
	if c.WindowCapacity <= 0 {
		c.WindowCapacity = d.WindowCapacity
	}
	if c.MaxBlocksPerPoll <= 0 {
		c.MaxBlocksPerPoll = d.MaxBlocksPerPoll
	}
}

// Engine owns the store and the aggregator exclusively. Writers (backfill,
// then the poll loop) never run concurrently: backfill finishes before the
// first tick fires, and ticks are serialized by the in-flight guard.
type Engine struct {
	cfg    Config
	client Client
	store  *store.BlockStore
	agg    *metrics.Aggregator
	bus    *Bus
	sink   SnapshotSink
	log    *slog.Logger

	running atomic.Bool
	polling atomic.Bool
	visible atomic.Bool

	mu             sync.Mutex
	lastSeenHeight uint64
	connected      bool
	backfilling    bool
	pollCount      uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an engine. sink may be nil.
func New(cfg Config, client Client, agg *metrics.Aggregator, sink SnapshotSink) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:    cfg,
		client: client,
		store:  store.NewBlockStore(cfg.WindowCapacity),
		agg:    agg,
		bus:    NewBus(),
		sink:   sink,
		log:    slog.Default(),
	}
	e.visible.Store(true)
	return e
}

// Bus returns the subscription surface exposed to the presentation layer.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// Store returns the block store for read-only queries.
func (e *Engine) Store() *store.BlockStore {
	return e.store
}

// Start launches backfill and the poll loop. It returns immediately; a
// second Start without an intervening Stop is an error. A restart after
// Stop begins a fresh backfill from the current head, never resuming
// partial state.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	e.store.Reset()
	e.bus.reset()
	e.mu.Lock()
	e.lastSeenHeight = 0
	e.backfilling = true
	e.mu.Unlock()

	go e.run(runCtx)
	return nil
}

// Stop cancels all outstanding work and waits for the loop to exit.
// Cancellation is cooperative: no new work starts, in-flight calls observe
// the shared signal through their contexts.
func (e *Engine) Stop() {
	if !e.running.Load() {
		return
	}
	e.cancel()
	<-e.done
	e.running.Store(false)
}

// SetVisible lets the presentation layer pause polling without tearing the
// engine down. An optimization hint, not a correctness requirement.
func (e *Engine) SetVisible(visible bool) {
	e.visible.Store(visible)
}

// LastSeenHeight returns the highest head the engine has accepted.
func (e *Engine) LastSeenHeight() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeenHeight
}

// Connected reports whether the last upstream interaction succeeded.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	if err := e.backfill(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		// Backfill aborts entirely without a head height; live polling
		// still starts with no history and marks connected once it works.
		e.log.Warn("backfill failed, starting live polling with no history", "error", err)
		e.mu.Lock()
		e.backfilling = false
		e.mu.Unlock()
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) setConnected(connected bool) {
	e.mu.Lock()
	e.connected = connected
	e.mu.Unlock()
}

// publishMetrics recomputes and fans out a snapshot from the current window.
func (e *Engine) publishMetrics(ctx context.Context, now time.Time) domain.MetricsSnapshot {
	recent := e.store.Recent()

	e.mu.Lock()
	st := metrics.State{
		Height:      e.lastSeenHeight,
		Connected:   e.connected,
		Backfilling: e.backfilling,
		PollCount:   e.pollCount,
	}
	e.mu.Unlock()

	snap := e.agg.Snapshot(recent, st, now)
	e.bus.publishSnapshot(snap)

	if e.sink != nil {
		if err := e.sink.PublishSnapshot(ctx, snap); err != nil {
			e.log.Debug("snapshot sink publish failed", "error", err)
		}
	}
	return snap
}
