package domain

// TPSSample is one historical throughput computation, kept in a fixed-size
// ring for sparkline display. The ring is a derived cache of past
// computations, never an input to the rolling TPS itself.
type TPSSample struct {
	Timestamp   int64   `json:"timestamp"`
	TPS         float64 `json:"tps"`
	BlockNumber uint64  `json:"block_number"`
}

// MetricsSnapshot is the engine's published view of derived metrics.
// It is recomputed as a whole on every cycle; consumers never see a
// partially updated snapshot.
type MetricsSnapshot struct {
	BlockHeight      uint64  `json:"block_height"`
	TPS              float64 `json:"tps"`
	PeakTPS          float64 `json:"peak_tps"`
	AvgBlockTimeMs   float64 `json:"avg_block_time_ms"`
	DerivedLatencyMs float64 `json:"derived_latency_ms"`
	P50LatencyMs     float64 `json:"p50_latency_ms"`
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	Connected        bool    `json:"connected"`
	Backfilling      bool    `json:"backfilling"`
	PollCount        uint64  `json:"poll_count"`
	Timestamp        int64   `json:"timestamp"`
}
