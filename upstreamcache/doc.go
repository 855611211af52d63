// Package upstreamcache puts the memoization cache in front of expensive
// upstream calls: web search, language model analysis and report
// aggregation.
//
// # Overview
//
// Each call site is a decorator that wraps an upstream client and routes
// its calls through a namespaced cache.Handle. The key payload is built
// only from the request fields that change the answer, so two requests
// that differ in nothing relevant share an entry.
//
//   - CachedSearcher: Searcher decorator over the search cache
//   - CachedAnalyzer: Analyzer decorator over the analysis cache
//   - Aggregator: builds a Report from search hits and their analyses and
//     caches it in the results cache
//   - HTTPSearcher: a Searcher for JSON search APIs
//
// # Basic Usage
//
//	container, _ := di.NewContainerWithDefaults()
//	defer container.Close()
//
//	searcher := upstreamcache.NewCachedSearcher(
//		upstreamcache.NewHTTPSearcher("https://search.example.com", upstreamcache.WithAPIKey(key)),
//		container.Search(),
//	)
//	analyzer := upstreamcache.NewCachedAnalyzer(llm, container.Analysis())
//	reports := upstreamcache.NewAggregator(searcher, analyzer, container.Results())
//
//	res, err := reports.Report(ctx, upstreamcache.ReportRequest{Brand: "Acme", Language: "en"})
//	// res.FromCache is true when the whole report was served from cache.
//
// # Caching Behavior
//
// Calls follow a read-through pattern:
//
//  1. Derive the key from the request payload
//  2. On a live entry, return it
//  3. Otherwise call the upstream client
//  4. Store the result on success, return the error untouched on failure
//
// # Context Controls
//
// WithRefresh skips the stored value and overwrites it with a fresh
// upstream result. WithTTLOverride changes the expiry of entries written
// under the context. Both apply to every cached layer the context reaches,
// so a refreshed report also refreshes its searches and analyses.
package upstreamcache
