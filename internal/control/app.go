// Package control wires the feed transport, engine, and status server
// together and manages their lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/blockfeed/internal/core/config"
	"github.com/vietddude/blockfeed/internal/engine"
	"github.com/vietddude/blockfeed/internal/health"
	"github.com/vietddude/blockfeed/internal/infra/chain"
	redispub "github.com/vietddude/blockfeed/internal/infra/redis"
	"github.com/vietddude/blockfeed/internal/infra/rpc"
	"github.com/vietddude/blockfeed/internal/metrics"
)

// App is the application root owning the engine and its collaborators.
type App struct {
	cfg       *config.AppConfig
	engine    *engine.Engine
	agg       *metrics.Aggregator
	resolver  *rpc.Resolver
	publisher *redispub.Publisher
	server    *health.Server
	log       *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	if cfg.Feed.PrimaryURL == "" {
		return nil, fmt.Errorf("no primary endpoint configured")
	}

	primary := rpc.NewHTTPProvider("primary", cfg.Feed.PrimaryURL, cfg.Feed.CallTimeout.Std())
	var fallback rpc.Caller
	if cfg.Feed.FallbackURL != "" {
		fallback = rpc.NewHTTPProvider("fallback", cfg.Feed.FallbackURL, cfg.Feed.CallTimeout.Std())
	}
	resolver := rpc.NewResolver(primary, fallback)

	sampler := metrics.NewLatencySampler(cfg.Feed.LatencySampleSize)
	client := chain.NewClient(resolver, sampler)
	headCache := chain.NewHeadCache(client, cfg.Feed.PollInterval.Std())

	agg := metrics.NewAggregator(metrics.Config{
		WindowMs:    cfg.Feed.TPSWindow.Std().Milliseconds(),
		HistorySize: cfg.Feed.TPSHistorySize,
	}, sampler)

	// Redis mirroring is optional; the engine runs unchanged without it.
	var publisher *redispub.Publisher
	var sink engine.SnapshotSink
	if cfg.Redis.URL != "" {
		var err error
		publisher, err = redispub.NewPublisher(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, snapshot mirroring disabled", "error", err)
		} else {
			sink = publisher
			slog.Info("Redis snapshot mirroring enabled")
		}
	}

	eng := engine.New(engine.Config{
		PollInterval:         cfg.Feed.PollInterval.Std(),
		BackfillCount:        cfg.Feed.BackfillCount,
		BackfillBatchSize:    cfg.Feed.BackfillBatchSize,
		MaxConcurrentBatches: cfg.Feed.MaxConcurrentBatches,
		WindowCapacity:       cfg.Feed.WindowCapacity,
		MaxBlocksPerPoll:     cfg.Feed.MaxBlocksPerPoll,
	}, headCache, agg, sink)

	server := health.NewServer(eng, agg, cfg.Server.Port)

	return &App{
		cfg:       cfg,
		engine:    eng,
		agg:       agg,
		resolver:  resolver,
		publisher: publisher,
		server:    server,
		log:       slog.Default(),
	}, nil
}

// Engine exposes the engine's subscription surface.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Start starts the engine and the status server.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Status server failed", "error", err)
		}
	}()

	return a.engine.Start(ctx)
}

// Stop stops everything, engine first so no event reaches a closed sink.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping blockfeed...")

	a.engine.Stop()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	_ = a.resolver.Close()

	return a.server.Stop(ctx)
}
