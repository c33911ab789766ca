package rpc

import (
	"context"
	"fmt"
	"log/slog"
)

// Caller issues a single JSON-RPC call.
type Caller interface {
	Call(ctx context.Context, method string, params []any) (any, error)
	Name() string
}

// Resolver routes every call to the primary endpoint first and retries the
// identical call against the fallback exactly once on any failure. It keeps
// no state between calls: both endpoints are treated as equally
// authoritative mirrors, so a flaky primary is never demoted.
type Resolver struct {
	primary  Caller
	fallback Caller
	log      *slog.Logger
}

// NewResolver creates a resolver. fallback may be nil, in which case
// failures propagate directly.
func NewResolver(primary, fallback Caller) *Resolver {
	return &Resolver{
		primary:  primary,
		fallback: fallback,
		log:      slog.Default(),
	}
}

// Call tries the primary, then the fallback. If both fail the last error is
// propagated; no further retry happens at this layer. Cancellation is never
// failed over: a cancelled call returns immediately.
func (r *Resolver) Call(ctx context.Context, method string, params []any) (any, error) {
	result, err := r.primary.Call(ctx, method, params)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.fallback == nil {
		return nil, err
	}

	r.log.Debug("primary endpoint failed, trying fallback",
		"endpoint", r.primary.Name(), "method", method, "error", err)

	result, ferr := r.fallback.Call(ctx, method, params)
	if ferr != nil {
		return nil, fmt.Errorf("all endpoints failed: primary: %v; fallback: %w", err, ferr)
	}
	return result, nil
}

// Name identifies the resolver for logging.
func (r *Resolver) Name() string {
	return "resolver"
}

// Close closes both underlying providers.
func (r *Resolver) Close() error {
	type closer interface{ Close() error }
	if c, ok := r.primary.(closer); ok {
		_ = c.Close()
	}
	if r.fallback != nil {
		if c, ok := r.fallback.(closer); ok {
			_ = c.Close()
		}
	}
	return nil
}
