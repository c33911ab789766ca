package metrics

import (
	"testing"
	"time"

	"github.com/vietddude/blockfeed/internal/core/domain"
)

func blocksSpanning(now time.Time, count int, spanMs, txPerBlock int) []domain.Block {
	// Newest first, evenly spread over the trailing span.
	nowMs := now.UnixMilli()
	step := int64(spanMs) / int64(count)
	out := make([]domain.Block, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, domain.Block{
			Number:    uint64(1000 - i),
			Timestamp: nowMs - int64(i)*step,
			TxCount:   txPerBlock,
		})
	}
	return out
}

func TestRollingTPS_InsufficientSignal(t *testing.T) {
	a := NewAggregator(Config{}, nil)
	now := time.Now()

	if tps := a.RollingTPS(nil, now); tps != 0 {
		t.Errorf("empty window: expected 0, got %f", tps)
	}

	one := blocksSpanning(now, 1, 100, 50)
	if tps := a.RollingTPS(one, now); tps != 0 {
		t.Errorf("single block: expected 0, got %f", tps)
	}
}

func TestRollingTPS_FixedDenominator(t *testing.T) {
	a := NewAggregator(Config{WindowMs: 30_000}, nil)
	now := time.Now()

	// 40 transactions across blocks spanning the window exactly.
	blocks := blocksSpanning(now, 8, 29_000, 5)
	tps := a.RollingTPS(blocks, now)

	want := 40.0 / 30.0 // window seconds, not actual span seconds
	if diff := tps - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected %.3f, got %.3f", want, tps)
	}
}

func TestRollingTPS_ExcludesStaleBlocks(t *testing.T) {
	a := NewAggregator(Config{WindowMs: 30_000}, nil)
	now := time.Now()

	blocks := blocksSpanning(now, 4, 10_000, 10)
	stale := domain.Block{Number: 1, Timestamp: now.UnixMilli() - 60_000, TxCount: 1000}
	blocks = append(blocks, stale)

	tps := a.RollingTPS(blocks, now)
	want := 40.0 / 30.0
	if diff := tps - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("stale block leaked into window: expected %.3f, got %.3f", want, tps)
	}
}

func TestSnapshot_PeakMonotonic(t *testing.T) {
	a := NewAggregator(Config{WindowMs: 30_000}, nil)
	now := time.Now()
	st := State{Height: 1000, Connected: true}

	busy := blocksSpanning(now, 10, 20_000, 30)
	quiet := blocksSpanning(now, 4, 20_000, 1)

	var prevPeak float64
	for _, blocks := range [][]domain.Block{quiet, busy, quiet, quiet} {
		snap := a.Snapshot(blocks, st, now)
		if snap.PeakTPS < prevPeak {
			t.Fatalf("peak decreased: %f -> %f", prevPeak, snap.PeakTPS)
		}
		prevPeak = snap.PeakTPS
	}

	busySnap := a.Snapshot(busy, st, now)
	if busySnap.PeakTPS != 10.0 { // 300 tx / 30s
		t.Errorf("expected peak 10.0, got %f", busySnap.PeakTPS)
	}
}

func TestSnapshot_ImplausibleTPSDiscarded(t *testing.T) {
	a := NewAggregator(Config{WindowMs: 30_000, MaxPlausibleTPS: 100}, nil)
	now := time.Now()
	st := State{Height: 1000}

	// 60_000 tx in the window -> 2000 TPS, above the 100 ceiling.
	seam := blocksSpanning(now, 6, 20_000, 10_000)
	snap := a.Snapshot(seam, st, now)

	if snap.TPS != 0 {
		t.Errorf("implausible TPS shown to the user: got %f", snap.TPS)
	}
	if snap.PeakTPS != 0 {
		t.Errorf("implausible TPS counted toward peak: got %f", snap.PeakTPS)
	}
}

func TestAverageBlockTime(t *testing.T) {
	a := NewAggregator(Config{AvgIntervalCount: 3}, nil)

	blocks := []domain.Block{
		{Number: 10, IntervalMs: 100},
		{Number: 9, IntervalMs: 200},
		{Number: 8}, // unknown interval, skipped
		{Number: 7, IntervalMs: 300},
		{Number: 6, IntervalMs: 9_000}, // beyond the sample count
	}

	if avg := a.AverageBlockTime(blocks); avg != 200 {
		t.Errorf("expected mean 200 over 3 newest valid intervals, got %f", avg)
	}

	if avg := a.AverageBlockTime(nil); avg != 0 {
		t.Errorf("expected 0 with no intervals, got %f", avg)
	}
}

func TestSnapshot_DerivedLatency(t *testing.T) {
	a := NewAggregator(Config{LatencyMultiplier: 1.5, AvgIntervalCount: 20}, nil)
	now := time.Now()

	blocks := []domain.Block{
		{Number: 2, Timestamp: now.UnixMilli(), IntervalMs: 100},
		{Number: 1, Timestamp: now.UnixMilli() - 100, IntervalMs: 100},
	}
	snap := a.Snapshot(blocks, State{Height: 2}, now)

	if snap.AvgBlockTimeMs != 100 {
		t.Errorf("expected avg block time 100, got %f", snap.AvgBlockTimeMs)
	}
	if snap.DerivedLatencyMs != 150 {
		t.Errorf("expected derived latency 150, got %f", snap.DerivedLatencyMs)
	}
}

func TestSeedHistory(t *testing.T) {
	a := NewAggregator(Config{HistorySize: 5}, nil)
	a.SeedHistory(2.5, 1000, time.Now())

	hist := a.History()
	if len(hist) != 5 {
		t.Fatalf("expected 5 seeded samples, got %d", len(hist))
	}
	for i, s := range hist {
		if s.TPS != 2.5 || s.BlockNumber != 1000 {
			t.Errorf("sample %d: got tps=%f height=%d", i, s.TPS, s.BlockNumber)
		}
	}
}

func TestHistoryRing_OldestOverwritten(t *testing.T) {
	a := NewAggregator(Config{WindowMs: 30_000, HistorySize: 3}, nil)
	now := time.Now()

	for h := uint64(1); h <= 5; h++ {
		a.Snapshot(nil, State{Height: h}, now)
	}

	hist := a.History()
	if len(hist) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(hist))
	}
	if hist[0].BlockNumber != 3 || hist[2].BlockNumber != 5 {
		t.Errorf("expected heights 3..5 oldest-first, got %d..%d",
			hist[0].BlockNumber, hist[2].BlockNumber)
	}
}

func TestLatencySampler_Percentiles(t *testing.T) {
	s := NewLatencySampler(10)

	p50, p95 := s.Percentiles()
	if p50 != 0 || p95 != 0 {
		t.Errorf("expected zero percentiles with no samples, got %f/%f", p50, p95)
	}

	for i := 1; i <= 10; i++ {
		s.Observe(time.Duration(i) * 10 * time.Millisecond)
	}
	p50, p95 = s.Percentiles()
	if p50 < 40 || p50 > 60 {
		t.Errorf("p50 out of range: %f", p50)
	}
	if p95 < p50 {
		t.Errorf("p95 %f below p50 %f", p95, p50)
	}
}

func TestLatencySampler_BoundedReservoir(t *testing.T) {
	s := NewLatencySampler(4)
	for i := 0; i < 100; i++ {
		s.Observe(time.Millisecond)
	}
	s.mu.Lock()
	n := len(s.samples)
	s.mu.Unlock()
	if n != 4 {
		t.Errorf("expected reservoir capped at 4, got %d", n)
	}
}
