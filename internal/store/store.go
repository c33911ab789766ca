// Package store holds the bounded in-memory view of recent blocks: an index
// keyed by block number for point lookups plus a fixed-capacity,
// newest-first recent window for sequential scans and display.
package store

import (
	"sync"
	"time"

	"github.com/vietddude/blockfeed/internal/core/domain"
)

type indexedBlock struct {
	block domain.Block
	// insertedAt is map housekeeping only, never business logic.
	insertedAt time.Time
}

// BlockStore keeps the index and the recent window consistent: the window
// is always a subset of the index, and pruning evicts from both together.
type BlockStore struct {
	mu       sync.RWMutex
	capacity int
	index    map[uint64]indexedBlock
	recent   []domain.Block // newest first, strictly descending by height
}

// NewBlockStore creates a store whose recent window holds at most capacity
// blocks.
func NewBlockStore(capacity int) *BlockStore {
	if capacity <= 0 {
		capacity = 500
	}
	return &BlockStore{
		capacity: capacity,
		index:    make(map[uint64]indexedBlock),
		recent:   make([]domain.Block, 0, capacity),
	}
}

// Get returns the block at the given height, if indexed.
func (s *BlockStore) Get(number uint64) (domain.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[number]
	return e.block, ok
}

// Recent returns a copy of the recent window, newest first. Callers compute
// over the copy, so pruning can never remove a block out from under an
// in-flight window computation.
func (s *BlockStore) Recent() []domain.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Block, len(s.recent))
	copy(out, s.recent)
	return out
}

// Len returns the number of blocks in the recent window.
func (s *BlockStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recent)
}

// Head returns the highest stored height, or 0 when empty.
func (s *BlockStore) Head() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recent) == 0 {
		return 0
	}
	return s.recent[0].Number
}

// Merge inserts blocks into the window and the index. Blocks must be sorted
// ascending by height and newer than anything currently stored; they are
// prepended newest-first and the window is truncated to capacity. Truncated
// entries stay in the index until PruneBelow evicts them.
func (s *BlockStore) Merge(ascending []domain.Block) {
	if len(ascending) == 0 {
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]domain.Block, 0, len(ascending)+len(s.recent))
	for i := len(ascending) - 1; i >= 0; i-- {
		merged = append(merged, ascending[i])
	}
	merged = append(merged, s.recent...)
	if len(merged) > s.capacity {
		merged = merged[:s.capacity]
	}
	s.recent = merged

	for _, b := range ascending {
		s.index[b.Number] = indexedBlock{block: b, insertedAt: now}
	}
}

// PruneBelow evicts every indexed entry with height strictly below
// minHeight. The recent window never reaches that old, so only the index
// shrinks; both structures stay consistent.
func (s *BlockStore) PruneBelow(minHeight uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := range s.index {
		if n < minHeight {
			delete(s.index, n)
		}
	}
	// Window entries below the horizon would violate the subset invariant.
	for i := len(s.recent) - 1; i >= 0; i-- {
		if s.recent[i].Number >= minHeight {
			s.recent = s.recent[:i+1]
			break
		}
		if i == 0 {
			s.recent = s.recent[:0]
		}
	}
}

// SetInterval attaches a derived inter-block interval to a stored block in
// both structures. A block's interval is set at most once.
func (s *BlockStore) SetInterval(number uint64, intervalMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[number]
	if !ok || e.block.IntervalMs != 0 {
		return
	}
	e.block.IntervalMs = intervalMs
	s.index[number] = e
	for i := range s.recent {
		if s.recent[i].Number == number {
			s.recent[i].IntervalMs = intervalMs
			break
		}
	}
}

// IndexSize returns the number of indexed entries, which may exceed the
// window length between prunes.
func (s *BlockStore) IndexSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Reset drops everything. A restarted backfill never resumes partial state.
func (s *BlockStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[uint64]indexedBlock)
	s.recent = s.recent[:0]
}
