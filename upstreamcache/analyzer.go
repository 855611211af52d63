package upstreamcache

import (
	"context"

	"github.com/goliatone/go-memocache/cache"
)

var _ Analyzer = (*CachedAnalyzer)(nil)

// CachedAnalyzer decorates an Analyzer with the analysis cache.
type CachedAnalyzer struct {
	base   Analyzer
	handle *cache.Handle
}

func NewCachedAnalyzer(base Analyzer, handle *cache.Handle) *CachedAnalyzer {
	return &CachedAnalyzer{base: base, handle: handle}
}

// Analyze implements Analyzer.
func (c *CachedAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	res, err := c.Lookup(ctx, req)
	if err != nil {
		return Analysis{}, err
	}
	return res.Value, nil
}

// Lookup is Analyze with the cache outcome attached.
func (c *CachedAnalyzer) Lookup(ctx context.Context, req AnalysisRequest) (cache.Result[Analysis], error) {
	return compute(ctx, c.handle, AnalysisPayload(req), func(ctx context.Context) (Analysis, error) {
		return c.base.Analyze(ctx, req)
	})
}

// AnalysisPayload builds the key payload for req.
func AnalysisPayload(req AnalysisRequest) map[string]any {
	return map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"text":   req.Text,
	}
}
