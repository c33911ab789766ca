package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/blockfeed/internal/control"
	"github.com/vietddude/blockfeed/internal/core/config"
	"github.com/vietddude/blockfeed/internal/core/domain"
)

// feedStub serves a synthetic chain over JSON-RPC: the head advances every
// blockTime, block n has n%7+1 transactions.
type feedStub struct {
	mu      sync.Mutex
	head    uint64
	genesis time.Time
}

func newFeedStub(head uint64) *feedStub {
	return &feedStub{head: head, genesis: time.Now().Add(-time.Duration(head) * 100 * time.Millisecond)}
}

func (f *feedStub) advance(n uint64) {
	f.mu.Lock()
	f.head += n
	f.mu.Unlock()
}

func (f *feedStub) handler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	head := f.head
	f.mu.Unlock()

	var result any
	switch req.Method {
	case "eth_blockNumber":
		result = fmt.Sprintf("0x%x", head)
	case "eth_getBlockByNumber":
		numHex := req.Params[0].(string)
		n, _ := strconv.ParseUint(strings.TrimPrefix(numHex, "0x"), 16, 64)
		if n > head {
			result = nil
		} else {
			ts := f.genesis.Add(time.Duration(n) * 100 * time.Millisecond).Unix()
			txs := make([]any, n%7+1)
			for i := range txs {
				txs[i] = fmt.Sprintf("0x%x", i)
			}
			result = map[string]any{
				"number":       numHex,
				"timestamp":    fmt.Sprintf("0x%x", ts),
				"transactions": txs,
			}
		}
	default:
		http.Error(w, "unknown method", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
}

func testConfig(primaryURL, fallbackURL string) *config.AppConfig {
	return &config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Feed: config.FeedConfig{
			PrimaryURL:           primaryURL,
			FallbackURL:          fallbackURL,
			CallTimeout:          config.Duration(2 * time.Second),
			PollInterval:         config.Duration(20 * time.Millisecond),
			BackfillCount:        50,
			BackfillBatchSize:    10,
			MaxConcurrentBatches: 2,
			WindowCapacity:       100,
			MaxBlocksPerPoll:     20,
			TPSWindow:            config.Duration(30 * time.Second),
			TPSHistorySize:       60,
			LatencySampleSize:    100,
		},
	}
}

func TestLiveFeed(t *testing.T) {
	stub := newFeedStub(1000)
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	app, err := control.NewApp(testConfig(srv.URL, ""))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	backfilled := make(chan domain.MetricsSnapshot, 1)
	app.Engine().Bus().SubscribeBackfillDone(func(snap domain.MetricsSnapshot) {
		backfilled <- snap
	})

	var blockMu sync.Mutex
	var newBlocks []uint64
	app.Engine().Bus().SubscribeNewBlock(func(b domain.Block) {
		blockMu.Lock()
		newBlocks = append(newBlocks, b.Number)
		blockMu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := app.Stop(stopCtx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	}()

	select {
	case snap := <-backfilled:
		if snap.BlockHeight != 1000 {
			t.Errorf("expected backfill up to head 1000, got %d", snap.BlockHeight)
		}
		if !snap.Connected || snap.Backfilling {
			t.Errorf("unexpected state after backfill: %+v", snap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("backfill never completed")
	}

	if got := app.Engine().Store().Len(); got != 50 {
		t.Errorf("expected 50 backfilled blocks, got %d", got)
	}

	// Advance the head and wait for the poller to pick up the delta.
	stub.advance(3)
	deadline := time.After(5 * time.Second)
	for app.Engine().LastSeenHeight() < 1003 {
		select {
		case <-deadline:
			t.Fatal("poller never caught up to the advanced head")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	blockMu.Lock()
	got := append([]uint64(nil), newBlocks...)
	blockMu.Unlock()
	want := map[uint64]bool{1001: true, 1002: true, 1003: true}
	for _, n := range got {
		delete(want, n)
	}
	if len(want) != 0 {
		t.Errorf("missing new-block events for %v (got %v)", want, got)
	}
}

func TestLiveFeed_FallbackOnly(t *testing.T) {
	stub := newFeedStub(200)
	healthy := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer broken.Close()

	app, err := control.NewApp(testConfig(broken.URL, healthy.URL))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	backfilled := make(chan domain.MetricsSnapshot, 1)
	app.Engine().Bus().SubscribeBackfillDone(func(snap domain.MetricsSnapshot) {
		backfilled <- snap
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	// A dead primary with a healthy fallback completes backfill and never
	// surfaces as a disconnect.
	select {
	case snap := <-backfilled:
		if snap.BlockHeight != 200 {
			t.Errorf("expected backfill via fallback to head 200, got %d", snap.BlockHeight)
		}
		if !snap.Connected {
			t.Error("fallback-served engine must not report disconnected")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("backfill never completed through the fallback")
	}
}
