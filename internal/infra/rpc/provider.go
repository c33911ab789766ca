package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/blockfeed/internal/metrics"
)

// ErrRateLimited marks a 429 from the endpoint.
var ErrRateLimited = errors.New("rate limited")

// HTTPProvider issues JSON-RPC calls over HTTP against a single endpoint.
// Every call carries its own timeout via context cancellation, so a shared
// parent context cancels all in-flight calls at once.
type HTTPProvider struct {
	name       string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPProvider creates a new HTTP-based JSON-RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		timeout:  timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Call makes a single JSON-RPC call. Transport failures, non-2xx statuses,
// malformed payloads, and protocol-level error fields are all surfaced as
// errors; the payload is never partially trusted.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.name, method).Inc()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, p.fail(method, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, p.fail(method, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.fail(method, fmt.Errorf("rpc call: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.fail(method, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, p.fail(method, fmt.Errorf("%w (429), retry after: %s", ErrRateLimited, resp.Header.Get("Retry-After")))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.fail(method, fmt.Errorf("http %d: %s", resp.StatusCode, string(body)))
	}

	var rpcResp struct {
		Result any             `json:"result"`
		Error  *map[string]any `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, p.fail(method, fmt.Errorf("parse response: %w", err))
	}

	if rpcResp.Error != nil {
		errMsg := "unknown error"
		if msg, ok := (*rpcResp.Error)["message"].(string); ok {
			errMsg = msg
		}
		return nil, p.fail(method, fmt.Errorf("rpc error: %s", errMsg))
	}

	metrics.RPCLatency.WithLabelValues(p.name, method).Observe(time.Since(start).Seconds())
	return rpcResp.Result, nil
}

// Name returns the provider's name.
func (p *HTTPProvider) Name() string {
	return p.name
}

// Close cleans up idle connections.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) fail(method string, err error) error {
	metrics.RPCErrorsTotal.WithLabelValues(p.name, method).Inc()
	return err
}
