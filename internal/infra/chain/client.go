package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/blockfeed/internal/core/domain"
	"github.com/vietddude/blockfeed/internal/metrics"
)

// ErrBlockNotFound marks a null result for a requested height, typically a
// head the endpoint has not caught up to yet.
var ErrBlockNotFound = errors.New("block not found")

// Caller issues a single JSON-RPC call against the feed.
type Caller interface {
	Call(ctx context.Context, method string, params []any) (any, error)
}

// Client exposes the two feed operations the engine consumes: current head
// height and block by height. There is no native batch verb upstream;
// batching is done by issuing concurrent calls.
type Client struct {
	caller  Caller
	sampler *metrics.LatencySampler
}

// NewClient creates a feed client. sampler may be nil.
func NewClient(caller Caller, sampler *metrics.LatencySampler) *Client {
	return &Client{caller: caller, sampler: sampler}
}

// HeadHeight returns the highest block number currently known upstream.
// Round-trip time is fed to the latency sampler on success.
func (c *Client) HeadHeight(ctx context.Context) (uint64, error) {
	start := time.Now()
	result, err := c.caller.Call(ctx, "eth_blockNumber", []any{})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	heightHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid head height response: %T", result)
	}
	height, err := parseHex(heightHex)
	if err != nil {
		return 0, fmt.Errorf("parse head height: %w", err)
	}

	if c.sampler != nil {
		c.sampler.Observe(time.Since(start))
	}
	return height, nil
}

// BlockByNumber fetches one block by height. Transaction bodies are not
// requested; only the count is needed.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error) {
	numberHex := fmt.Sprintf("0x%x", number)
	result, err := c.caller.Call(ctx, "eth_getBlockByNumber", []any{numberHex, false})
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("block %d: %w", number, ErrBlockNotFound)
	}

	raw, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid block format: %T", result)
	}
	return parseBlock(raw)
}

func parseBlock(raw map[string]any) (*domain.Block, error) {
	number, err := parseHex(getString(raw["number"]))
	if err != nil {
		return nil, fmt.Errorf("parse block number: %w", err)
	}
	ts, err := parseHex(getString(raw["timestamp"]))
	if err != nil {
		return nil, fmt.Errorf("parse block timestamp: %w", err)
	}

	txCount := 0
	if txs, ok := raw["transactions"].([]any); ok {
		txCount = len(txs)
	}

	return &domain.Block{
		Number:    number,
		Timestamp: int64(ts) * 1000, // feed timestamps are unix seconds
		TxCount:   txCount,
	}, nil
}

func parseHex(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty hex string")
	}
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}

func getString(v any) string {
	s, _ := v.(string)
	return s
}
