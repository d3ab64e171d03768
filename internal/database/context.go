package database

import (
	"context"
	"time"
)

type timeoutKey int

const (
	queryTimeoutKey timeoutKey = iota
	executeTimeoutKey
)

// WithQueryTimeout overrides the gateway's read timeout for calls made with ctx.
func WithQueryTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, queryTimeoutKey, d)
}

// WithExecuteTimeout overrides the gateway's write timeout for calls made with ctx.
func WithExecuteTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, executeTimeoutKey, d)
}

// bounded derives a context that expires after the override stored under key,
// or after def when ctx carries none.
func bounded(ctx context.Context, key timeoutKey, def time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d, ok := ctx.Value(key).(time.Duration); ok && d > 0 {
		def = d
	}
	return context.WithTimeout(ctx, def)
}
