package upstreamcache

import (
	"context"

	"github.com/goliatone/go-memocache/cache"
)

// compute runs fetch through h, honoring the refresh and TTL markers on ctx.
// A refresh still derives the key first so a bad payload never reaches the
// upstream call.
func compute[T any](ctx context.Context, h *cache.Handle, payload any, fetch cache.FetchFn[T]) (cache.Result[T], error) {
	var opts []cache.SetOption
	if ttl, ok := ttlFromContext(ctx); ok {
		opts = append(opts, cache.WithTTL(ttl))
	}

	if !refreshFromContext(ctx) {
		return cache.GetOrCompute(ctx, h, payload, fetch, opts...)
	}

	if _, err := h.Key(payload); err != nil {
		return cache.Result[T]{}, err
	}
	value, err := fetch(ctx)
	if err != nil {
		return cache.Result[T]{}, err
	}
	if err := h.Set(payload, value, opts...); err != nil {
		return cache.Result[T]{}, err
	}
	return cache.Result[T]{Value: value}, nil
}
