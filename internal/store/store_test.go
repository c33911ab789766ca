package store

import (
	"testing"

	"github.com/vietddude/blockfeed/internal/core/domain"
)

func ascending(from, to uint64, intervalMs int64) []domain.Block {
	var out []domain.Block
	ts := int64(1_700_000_000_000)
	for n := from; n <= to; n++ {
		out = append(out, domain.Block{
			Number:    n,
			Timestamp: ts + int64(n-from)*intervalMs,
			TxCount:   3,
		})
	}
	return out
}

func TestMerge_DescendingOrder(t *testing.T) {
	s := NewBlockStore(10)
	s.Merge(ascending(1, 5, 100))

	recent := s.Recent()
	if len(recent) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Number >= recent[i-1].Number {
			t.Errorf("window not strictly descending at %d: %d >= %d",
				i, recent[i].Number, recent[i-1].Number)
		}
	}
	if recent[0].Number != 5 {
		t.Errorf("expected newest block 5 first, got %d", recent[0].Number)
	}
}

func TestMerge_CapacityNeverExceeded(t *testing.T) {
	s := NewBlockStore(3)
	s.Merge(ascending(1, 10, 100))
	if s.Len() != 3 {
		t.Fatalf("expected window capped at 3, got %d", s.Len())
	}

	s.Merge(ascending(11, 15, 100))
	if s.Len() != 3 {
		t.Fatalf("expected window capped at 3 after second merge, got %d", s.Len())
	}
	if got := s.Head(); got != 15 {
		t.Errorf("expected head 15, got %d", got)
	}
}

func TestMerge_EvictedStayIndexedUntilPrune(t *testing.T) {
	s := NewBlockStore(3)
	s.Merge(ascending(1, 5, 100))

	// 1 and 2 fell out of the window but stay indexed.
	if _, ok := s.Get(1); !ok {
		t.Error("expected block 1 still indexed after window truncation")
	}
	if s.IndexSize() != 5 {
		t.Errorf("expected 5 indexed entries, got %d", s.IndexSize())
	}

	s.PruneBelow(3)
	if _, ok := s.Get(1); ok {
		t.Error("expected block 1 evicted after prune")
	}
	if _, ok := s.Get(2); ok {
		t.Error("expected block 2 evicted after prune")
	}
	if _, ok := s.Get(3); !ok {
		t.Error("expected block 3 to survive prune")
	}
	if s.IndexSize() != 3 {
		t.Errorf("expected 3 indexed entries after prune, got %d", s.IndexSize())
	}
}

func TestWindowSubsetOfIndex(t *testing.T) {
	s := NewBlockStore(4)
	s.Merge(ascending(1, 8, 100))
	s.PruneBelow(4)

	for _, b := range s.Recent() {
		if _, ok := s.Get(b.Number); !ok {
			t.Errorf("window block %d missing from index", b.Number)
		}
	}
}

func TestSetInterval_Once(t *testing.T) {
	s := NewBlockStore(5)
	s.Merge(ascending(1, 3, 100))

	s.SetInterval(2, 100)
	b, _ := s.Get(2)
	if b.IntervalMs != 100 {
		t.Fatalf("expected interval 100, got %d", b.IntervalMs)
	}

	// Already set: second attach is ignored.
	s.SetInterval(2, 999)
	b, _ = s.Get(2)
	if b.IntervalMs != 100 {
		t.Errorf("interval overwritten: got %d", b.IntervalMs)
	}

	// Window copy reflects the interval too.
	for _, rb := range s.Recent() {
		if rb.Number == 2 && rb.IntervalMs != 100 {
			t.Errorf("window copy missing interval: got %d", rb.IntervalMs)
		}
	}
}

func TestReset(t *testing.T) {
	s := NewBlockStore(5)
	s.Merge(ascending(1, 5, 100))
	s.Reset()

	if s.Len() != 0 || s.IndexSize() != 0 {
		t.Errorf("expected empty store after reset, got window=%d index=%d",
			s.Len(), s.IndexSize())
	}
	if got := s.Head(); got != 0 {
		t.Errorf("expected head 0 after reset, got %d", got)
	}
}
