package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vietddude/blockfeed/internal/core/domain"
)

// BlockHandler receives every block merged into the store.
type BlockHandler func(domain.Block)

// SnapshotHandler receives every published metrics snapshot.
type SnapshotHandler func(domain.MetricsSnapshot)

// BackfillDoneHandler fires once when the initial backfill completes. A
// handler subscribed after completion fires immediately with the last known
// snapshot.
type BackfillDoneHandler func(domain.MetricsSnapshot)

// Bus fans events out to subscribers synchronously. Handlers must not
// block: anything doing I/O hands off to its own goroutine, otherwise it
// stalls the poll loop.
type Bus struct {
	mu           sync.RWMutex
	blockSubs    map[string]BlockHandler
	snapshotSubs map[string]SnapshotHandler
	backfillSubs map[string]BackfillDoneHandler
	backfillDone bool
	lastSnapshot domain.MetricsSnapshot
	haveSnapshot bool
}

// NewBus creates an empty subscriber bus.
func NewBus() *Bus {
	return &Bus{
		blockSubs:    make(map[string]BlockHandler),
		snapshotSubs: make(map[string]SnapshotHandler),
		backfillSubs: make(map[string]BackfillDoneHandler),
	}
}

// SubscribeNewBlock registers a handler; the returned func unsubscribes.
func (b *Bus) SubscribeNewBlock(h BlockHandler) (unsubscribe func()) {
	id := uuid.NewString()
	b.mu.Lock()
	b.blockSubs[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.blockSubs, id)
		b.mu.Unlock()
	}
}

// SubscribeSnapshot registers a handler; the returned func unsubscribes.
func (b *Bus) SubscribeSnapshot(h SnapshotHandler) (unsubscribe func()) {
	id := uuid.NewString()
	b.mu.Lock()
	b.snapshotSubs[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.snapshotSubs, id)
		b.mu.Unlock()
	}
}

// SubscribeBackfillDone registers a handler, replaying the last known state
// when backfill already finished.
func (b *Bus) SubscribeBackfillDone(h BackfillDoneHandler) (unsubscribe func()) {
	id := uuid.NewString()
	b.mu.Lock()
	replay := b.backfillDone
	last := b.lastSnapshot
	b.backfillSubs[id] = h
	b.mu.Unlock()

	if replay {
		h(last)
	}
	return func() {
		b.mu.Lock()
		delete(b.backfillSubs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) publishBlock(block domain.Block) {
	b.mu.RLock()
	handlers := make([]BlockHandler, 0, len(b.blockSubs))
	for _, h := range b.blockSubs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(block)
	}
}

func (b *Bus) publishSnapshot(snap domain.MetricsSnapshot) {
	b.mu.Lock()
	b.lastSnapshot = snap
	b.haveSnapshot = true
	handlers := make([]SnapshotHandler, 0, len(b.snapshotSubs))
	for _, h := range b.snapshotSubs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(snap)
	}
}

func (b *Bus) publishBackfillDone(snap domain.MetricsSnapshot) {
	b.mu.Lock()
	b.backfillDone = true
	b.lastSnapshot = snap
	b.haveSnapshot = true
	handlers := make([]BackfillDoneHandler, 0, len(b.backfillSubs))
	for _, h := range b.backfillSubs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(snap)
	}
}

// LastSnapshot returns the most recently published snapshot.
func (b *Bus) LastSnapshot() (domain.MetricsSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSnapshot, b.haveSnapshot
}

func (b *Bus) reset() {
	b.mu.Lock()
	b.backfillDone = false
	b.mu.Unlock()
}
