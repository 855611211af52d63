package upstreamcache

import (
	"context"

	"github.com/goliatone/go-memocache/cache"
)

var _ Searcher = (*CachedSearcher)(nil)

// CachedSearcher decorates a Searcher with the search cache.
type CachedSearcher struct {
	base   Searcher
	handle *cache.Handle
}

// NewCachedSearcher wraps base so identical queries hit the upstream once
// per TTL window.
func NewCachedSearcher(base Searcher, handle *cache.Handle) *CachedSearcher {
	return &CachedSearcher{base: base, handle: handle}
}

// Search implements Searcher.
func (c *CachedSearcher) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	res, err := c.Lookup(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Lookup is Search with the cache outcome attached.
func (c *CachedSearcher) Lookup(ctx context.Context, q SearchQuery) (cache.Result[[]SearchResult], error) {
	return compute(ctx, c.handle, SearchPayload(q), func(ctx context.Context) ([]SearchResult, error) {
		return c.base.Search(ctx, q)
	})
}

// Invalidate drops the cached results for q.
func (c *CachedSearcher) Invalidate(q SearchQuery) (bool, error) {
	return c.handle.Delete(SearchPayload(q))
}

// SearchPayload builds the key payload for q. Unset optional fields are
// left out so they do not split the key space.
func SearchPayload(q SearchQuery) map[string]any {
	payload := map[string]any{"query": q.Query}
	if q.Language != "" {
		payload["language"] = q.Language
	}
	if q.Country != "" {
		payload["country"] = q.Country
	}
	if q.MaxResults > 0 {
		payload["maxResults"] = q.MaxResults
	}
	return payload
}
