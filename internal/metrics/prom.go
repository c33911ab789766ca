package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksIngested tracks total blocks merged into the store.
	BlocksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockfeed_blocks_ingested_total",
			Help: "Total number of blocks ingested from the feed",
		},
	)

	// RPCCallsTotal tracks RPC calls per endpoint and method.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockfeed_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"endpoint", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per endpoint and method.
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockfeed_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"endpoint", "method"},
	)

	// RPCLatency tracks RPC call latency.
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockfeed_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// HeadHeight tracks the latest head height seen on the feed.
	HeadHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockfeed_head_height",
			Help: "Latest head height seen on the feed",
		},
	)

	// CurrentTPS tracks the last rolling TPS computation.
	CurrentTPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockfeed_tps",
			Help: "Rolling transactions per second",
		},
	)

	// BackfillBlocksFetched tracks blocks fetched during backfill.
	BackfillBlocksFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockfeed_backfill_blocks_fetched_total",
			Help: "Total number of blocks fetched during backfill",
		},
	)
)
