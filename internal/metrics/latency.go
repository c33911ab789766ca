package metrics

import (
	"sort"
	"sync"
	"time"
)

// LatencySampler keeps a bounded reservoir of observed RPC round-trip times
// and reports percentiles from it. It stands in for a true end-to-end
// latency measurement: the engine feeds it head-query round trips.
type LatencySampler struct {
	mu       sync.Mutex
	capacity int
	samples  []float64 // milliseconds, insertion order
	next     int
}

// NewLatencySampler creates a sampler holding at most capacity observations;
// older observations are overwritten.
func NewLatencySampler(capacity int) *LatencySampler {
	if capacity <= 0 {
		capacity = 100
	}
	return &LatencySampler{
		capacity: capacity,
		samples:  make([]float64, 0, capacity),
	}
}

// Observe records one round-trip duration.
func (s *LatencySampler) Observe(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) < s.capacity {
		s.samples = append(s.samples, ms)
		return
	}
	s.samples[s.next] = ms
	s.next = (s.next + 1) % s.capacity
}

// Percentiles returns the p50 and p95 of the current reservoir in
// milliseconds. With no observations both are 0.
func (s *LatencySampler) Percentiles() (p50, p95 float64) {
	s.mu.Lock()
	sorted := make([]float64, len(s.samples))
	copy(sorted, s.samples)
	s.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0
	}
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95)
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
