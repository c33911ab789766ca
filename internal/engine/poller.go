package engine

import (
	"context"
	"sort"
	"time"

	"github.com/vietddude/blockfeed/internal/core/domain"
	"github.com/vietddude/blockfeed/internal/metrics"
)

// pollOnce runs a single poll tick. The in-flight guard makes overlapping
// ticks a no-op rather than a queue: a slow tick simply swallows the ones
// the ticker fires underneath it.
func (e *Engine) pollOnce(ctx context.Context) {
	if !e.polling.CompareAndSwap(false, true) {
		return
	}
	defer e.polling.Store(false)

	// Presentation-layer hint: nothing to display, skip the tick entirely.
	if !e.visible.Load() {
		return
	}

	head, err := e.client.HeadHeight(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.log.Debug("head query failed", "error", err)
		e.setConnected(false)
		return
	}
	e.setConnected(true)
	metrics.HeadHeight.Set(float64(head))

	e.mu.Lock()
	e.pollCount++
	last := e.lastSeenHeight
	e.mu.Unlock()

	now := time.Now()
	if head <= last {
		// Nothing new this tick; metrics still recompute from the
		// unchanged window.
		e.publishMetrics(ctx, now)
		return
	}

	newCount := head - last
	if newCount > uint64(e.cfg.MaxBlocksPerPoll) {
		newCount = uint64(e.cfg.MaxBlocksPerPoll)
	}

	fetched := e.fetchRangeSorted(ctx, head-newCount+1, head)
	if ctx.Err() != nil {
		return
	}

	// Predecessor lookup is O(1) against the index; for blocks fetched in
	// the same tick the predecessor may still be local only.
	for i := range fetched {
		b := &fetched[i]
		var prevTS int64
		if i > 0 && fetched[i-1].Number == b.Number-1 {
			prevTS = fetched[i-1].Timestamp
		} else if prev, ok := e.store.Get(b.Number - 1); ok {
			prevTS = prev.Timestamp
		}
		if prevTS != 0 {
			b.IntervalMs = domain.DeriveInterval(prevTS, b.Timestamp)
		}
	}

	e.store.Merge(fetched)

	// The head advances even when individual heights failed: a skipped
	// height is a permanent gap, not a retry.
	e.mu.Lock()
	e.lastSeenHeight = head
	e.mu.Unlock()

	if horizon := uint64(2 * e.cfg.WindowCapacity); head > horizon {
		e.store.PruneBelow(head - horizon)
	}

	for _, b := range fetched {
		metrics.BlocksIngested.Inc()
		e.bus.publishBlock(b)
		if e.sink != nil {
			if err := e.sink.PublishBlock(ctx, b); err != nil {
				e.log.Debug("block sink publish failed", "error", err)
			}
		}
	}

	e.publishMetrics(ctx, now)
}

// fetchRangeSorted fetches an inclusive range in parallel and returns the
// successes in ascending order.
func (e *Engine) fetchRangeSorted(ctx context.Context, from, to uint64) []domain.Block {
	blocks := e.fetchRange(ctx, from, to)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Number < blocks[j].Number })
	return blocks
}
