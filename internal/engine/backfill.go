package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vietddude/blockfeed/internal/core/domain"
	"github.com/vietddude/blockfeed/internal/metrics"
)

// backfill performs the one-time historical catch-up: it queries the head,
// partitions the trailing window of heights into fixed-size batches, and
// fetches a bounded number of batches concurrently. Individual height
// failures are dropped silently; backfill is best-effort history. Only the
// inability to obtain the head aborts the whole pass.
func (e *Engine) backfill(ctx context.Context) error {
	start := time.Now()

	head, err := e.client.HeadHeight(ctx)
	if err != nil {
		e.setConnected(false)
		return fmt.Errorf("backfill head query: %w", err)
	}
	e.setConnected(true)
	metrics.HeadHeight.Set(float64(head))

	count := uint64(e.cfg.BackfillCount)
	if head < count {
		count = head
	}
	lowest := head - count + 1

	e.log.Info("starting backfill",
		"head", head, "count", count,
		"batch_size", e.cfg.BackfillBatchSize,
		"max_concurrent", e.cfg.MaxConcurrentBatches)

	batches := partition(lowest, head, uint64(e.cfg.BackfillBatchSize))

	var (
		mu      sync.Mutex
		fetched []domain.Block
	)
	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrentBatches))
	var wg sync.WaitGroup

	for _, b := range batches {
		// Acquire blocks until a running batch finishes; a cancelled
		// context abandons the remaining batches immediately.
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(from, to uint64) {
			defer wg.Done()
			defer sem.Release(1)
			blocks := e.fetchRange(ctx, from, to)
			mu.Lock()
			fetched = append(fetched, blocks...)
			mu.Unlock()
		}(b.from, b.to)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Ascending order is required for interval computation; storage is
	// kept descending by the store itself.
	sort.Slice(fetched, func(i, j int) bool { return fetched[i].Number < fetched[j].Number })
	for i := 1; i < len(fetched); i++ {
		if fetched[i-1].Number == fetched[i].Number-1 {
			fetched[i].IntervalMs = domain.DeriveInterval(fetched[i-1].Timestamp, fetched[i].Timestamp)
		}
	}

	e.store.Merge(fetched)
	metrics.BackfillBlocksFetched.Add(float64(len(fetched)))

	e.mu.Lock()
	e.lastSeenHeight = head
	e.backfilling = false
	e.mu.Unlock()

	now := time.Now()
	seed := e.agg.RollingTPS(e.store.Recent(), now)
	e.agg.SeedHistory(seed, head, now)

	snap := e.publishMetrics(ctx, now)
	e.bus.publishBackfillDone(snap)

	e.log.Info("backfill complete",
		"head", head, "fetched", len(fetched),
		"missed", int(count)-len(fetched),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

type heightRange struct {
	from, to uint64 // inclusive
}

func partition(lowest, highest, batchSize uint64) []heightRange {
	var out []heightRange
	for from := lowest; from <= highest; from += batchSize {
		to := from + batchSize - 1
		if to > highest {
			to = highest
		}
		out = append(out, heightRange{from: from, to: to})
	}
	return out
}

// fetchRange fans out one fetch per height and collects the successes.
// Order is irrelevant: heights are sorted before use.
func (e *Engine) fetchRange(ctx context.Context, from, to uint64) []domain.Block {
	var (
		mu     sync.Mutex
		blocks []domain.Block
	)

	g, gctx := errgroup.WithContext(ctx)
	for n := from; n <= to; n++ {
		g.Go(func() error {
			block, err := e.client.BlockByNumber(gctx, n)
			if err != nil {
				// Dropped, not retried: the gap is accepted.
				e.log.Debug("block fetch failed", "height", n, "error", err)
				return nil
			}
			mu.Lock()
			blocks = append(blocks, *block)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return blocks
}
