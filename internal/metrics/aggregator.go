package metrics

import (
	"sync"
	"time"

	"github.com/vietddude/blockfeed/internal/core/domain"
)

// Config tunes the aggregator.
type Config struct {
	WindowMs          int64   // rolling TPS window length (default 30s)
	HistorySize       int     // TPS sample ring capacity (default 60)
	AvgIntervalCount  int     // inter-block intervals averaged for block time (default 20)
	MaxPlausibleTPS   float64 // computed TPS above this is discarded (default 200000)
	LatencyMultiplier float64 // derived latency = multiplier * avg block time (default 1.5)
}

// DefaultConfig returns the aggregator defaults.
func DefaultConfig() Config {
	return Config{
		WindowMs:          30_000,
		HistorySize:       60,
		AvgIntervalCount:  20,
		MaxPlausibleTPS:   200_000,
		LatencyMultiplier: 1.5,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.WindowMs <= 0 {
		c.WindowMs = d.WindowMs
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.AvgIntervalCount <= 0 {
		c.AvgIntervalCount = d.AvgIntervalCount
	}
	if c.MaxPlausibleTPS <= 0 {
		c.MaxPlausibleTPS = d.MaxPlausibleTPS
	}
	if c.LatencyMultiplier <= 0 {
		c.LatencyMultiplier = d.LatencyMultiplier
	}
}

// State is the engine-owned part of a snapshot, passed in on every
// computation so the snapshot is assembled atomically.
type State struct {
	Height      uint64
	Connected   bool
	Backfilling bool
	PollCount   uint64
}

// Aggregator recomputes rolling throughput and cadence metrics from the
// recent window on every cycle. The TPS history ring is a cache of past
// computations for sparkline display, never an input.
type Aggregator struct {
	cfg     Config
	sampler *LatencySampler

	mu      sync.Mutex
	peakTPS float64
	history []domain.TPSSample
}

// NewAggregator creates an aggregator. sampler may be nil; percentile
// latencies then stay zero.
func NewAggregator(cfg Config, sampler *LatencySampler) *Aggregator {
	cfg.applyDefaults()
	return &Aggregator{
		cfg:     cfg,
		sampler: sampler,
		history: make([]domain.TPSSample, 0, cfg.HistorySize),
	}
}

// RollingTPS computes throughput over blocks whose timestamp falls within
// the trailing window. Fewer than two blocks in the window reports 0
// (insufficient signal, not an error). The denominator is the configured
// window length, not the actual timestamp span: this deliberately smooths
// display during sparse periods instead of amplifying noise.
func (a *Aggregator) RollingTPS(blocks []domain.Block, now time.Time) float64 {
	nowMs := now.UnixMilli()
	cutoff := nowMs - a.cfg.WindowMs

	count := 0
	totalTx := 0
	for _, b := range blocks {
		if b.Timestamp >= cutoff && b.Timestamp <= nowMs {
			count++
			totalTx += b.TxCount
		}
	}
	if count < 2 {
		return 0
	}
	return float64(totalTx) / (float64(a.cfg.WindowMs) / 1000.0)
}

// AverageBlockTime returns the mean of the most recent valid inter-block
// intervals in milliseconds. blocks must be newest-first.
func (a *Aggregator) AverageBlockTime(blocks []domain.Block) float64 {
	var sum int64
	n := 0
	for _, b := range blocks {
		if b.IntervalMs <= 0 {
			continue
		}
		sum += b.IntervalMs
		n++
		if n >= a.cfg.AvgIntervalCount {
			break
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// Snapshot recomputes every derived metric from the recent window and
// records the result in the history ring. blocks must be newest-first.
func (a *Aggregator) Snapshot(blocks []domain.Block, st State, now time.Time) domain.MetricsSnapshot {
	tps := a.RollingTPS(blocks, now)
	avg := a.AverageBlockTime(blocks)

	a.mu.Lock()
	if tps > a.cfg.MaxPlausibleTPS {
		// Backfill seam or clock anomaly: never shown, never a peak.
		tps = 0
	} else if tps > a.peakTPS {
		a.peakTPS = tps
	}
	peak := a.peakTPS
	a.recordLocked(domain.TPSSample{
		Timestamp:   now.UnixMilli(),
		TPS:         tps,
		BlockNumber: st.Height,
	})
	a.mu.Unlock()

	var p50, p95 float64
	if a.sampler != nil {
		p50, p95 = a.sampler.Percentiles()
	}

	CurrentTPS.Set(tps)

	return domain.MetricsSnapshot{
		BlockHeight:      st.Height,
		TPS:              tps,
		PeakTPS:          peak,
		AvgBlockTimeMs:   avg,
		DerivedLatencyMs: avg * a.cfg.LatencyMultiplier,
		P50LatencyMs:     p50,
		P95LatencyMs:     p95,
		Connected:        st.Connected,
		Backfilling:      st.Backfilling,
		PollCount:        st.PollCount,
		Timestamp:        now.UnixMilli(),
	}
}

// SeedHistory fills the ring with a uniformly repeated value so early
// consumers see a non-empty history right after backfill instead of a cold
// start of zeros.
func (a *Aggregator) SeedHistory(tps float64, height uint64, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = a.history[:0]
	for i := 0; i < a.cfg.HistorySize; i++ {
		a.history = append(a.history, domain.TPSSample{
			Timestamp:   now.UnixMilli(),
			TPS:         tps,
			BlockNumber: height,
		})
	}
}

// History returns a copy of the TPS sample ring, oldest first.
func (a *Aggregator) History() []domain.TPSSample {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.TPSSample, len(a.history))
	copy(out, a.history)
	return out
}

// PeakTPS returns the all-time high-water mark for this run.
func (a *Aggregator) PeakTPS() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peakTPS
}

func (a *Aggregator) recordLocked(s domain.TPSSample) {
	if len(a.history) >= a.cfg.HistorySize {
		// Oldest overwritten: shift-down keeps the ring ordered oldest first.
		copy(a.history, a.history[1:])
		a.history[len(a.history)-1] = s
		return
	}
	a.history = append(a.history, s)
}
