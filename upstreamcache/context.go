package upstreamcache

import (
	"context"
	"time"
)

type refreshContextKey struct{}

type ttlContextKey struct{}

// WithRefresh marks ctx so cached call sites skip the stored value, run the
// upstream call and overwrite the entry with its result.
func WithRefresh(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, refreshContextKey{}, true)
}

// WithTTLOverride sets the expiry used for entries written under ctx.
// Non positive durations are ignored.
func WithTTLOverride(ctx context.Context, ttl time.Duration) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		return ctx
	}
	return context.WithValue(ctx, ttlContextKey{}, ttl)
}

func refreshFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	refresh, _ := ctx.Value(refreshContextKey{}).(bool)
	return refresh
}

func ttlFromContext(ctx context.Context) (time.Duration, bool) {
	if ctx == nil {
		return 0, false
	}
	ttl, ok := ctx.Value(ttlContextKey{}).(time.Duration)
	return ttl, ok
}
