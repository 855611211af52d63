package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-memocache/internal/kvstore"
)

// Entry is one stored value with its creation and expiry times.
type Entry = kvstore.Entry

// Stats classifies entries as valid or expired at the time of the call.
type Stats = kvstore.Stats

// MemoryStore is the in-memory Store implementation returned by NewStore.
type MemoryStore = kvstore.Store

// Store is the key value contract a Handle is built on. Implementations
// never reject a write; expired entries behave as absent.
type Store interface {
	Set(key string, value any, ttl time.Duration)
	Get(key string) (any, bool)
	Has(key string) bool
	Delete(key string) bool
	DeleteByPrefix(prefix string) int
	Clear() int
	Stats() Stats
	StatsPrefix(prefix string) Stats
	DefaultTTL() time.Duration
}

var _ Store = (*MemoryStore)(nil)

// FetchFn computes the value to cache on a miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Result is the outcome of GetOrCompute.
type Result[T any] struct {
	Value     T
	FromCache bool
}

// GetOrCompute returns the live value stored for payload in h, or calls
// fetchFn, stores its result and returns it. A failed fetch is returned
// unchanged and nothing is stored.
//
// Without coalescing, two concurrent misses on the same payload both call
// fetchFn and the last write wins.
func GetOrCompute[T any](ctx context.Context, h *Handle, payload any, fetchFn FetchFn[T], opts ...SetOption) (Result[T], error) {
	key, err := h.Key(payload)
	if err != nil {
		return Result[T]{}, err
	}

	if cached, ok := h.store.Get(key); ok {
		h.metrics.RecordLookup(ctx, h.namespace, true)
		value, err := assertResult[T](key, cached)
		if err != nil {
			return Result[T]{}, err
		}
		return Result[T]{Value: value, FromCache: true}, nil
	}
	h.metrics.RecordLookup(ctx, h.namespace, false)

	ttl := h.resolveTTL(opts)

	if !h.coalesce {
		value, err := fetchAndStore(ctx, h, key, ttl, fetchFn)
		if err != nil {
			return Result[T]{}, err
		}
		return Result[T]{Value: value}, nil
	}

	// The shared fetch must outlive any single caller so it can still
	// populate the store when the caller that started it goes away.
	detached := context.WithoutCancel(ctx)
	ch := h.flights.DoChan(key, func() (v any, err error) {
		// The flight runs on its own goroutine, where a panic would take
		// down the process instead of the caller.
		defer func() {
			if r := recover(); r != nil {
				h.logger.ErrorContext(detached, "fetch panicked", "namespace", h.namespace, "key", key, "panic", r)
				v, err = nil, newFetchPanicError(key, r)
			}
		}()

		// A flight that finished between our lookup and this one has
		// already stored the value.
		if cached, ok := h.store.Get(key); ok {
			return flight{value: cached, fromCache: true}, nil
		}
		value, err := fetchAndStore(detached, h, key, ttl, fetchFn)
		return flight{value: value}, err
	})

	select {
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result[T]{}, res.Err
		}
		f := res.Val.(flight)
		value, err := assertResult[T](key, f.value)
		if err != nil {
			return Result[T]{}, err
		}
		return Result[T]{Value: value, FromCache: f.fromCache}, nil
	}
}

type flight struct {
	value     any
	fromCache bool
}

func fetchAndStore[T any](ctx context.Context, h *Handle, key string, ttl time.Duration, fetchFn FetchFn[T]) (T, error) {
	h.logger.DebugContext(ctx, "cache miss", "namespace", h.namespace, "key", key)

	start := time.Now()
	value, err := fetchFn(ctx)
	h.metrics.RecordFetch(ctx, h.namespace, time.Since(start), err)
	if err != nil {
		h.logger.WarnContext(ctx, "fetch failed, nothing cached", "namespace", h.namespace, "key", key, "error", err)
		var zero T
		return zero, err
	}

	h.store.Set(key, value, ttl)
	return value, nil
}

func assertResult[T any](key string, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, newInvalidResultTypeError(key, v, typeName[T]())
	}
	return typed, nil
}
