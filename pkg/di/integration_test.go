package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-memocache/cache"
	"github.com/goliatone/go-memocache/pkg/testsupport"
	"github.com/goliatone/go-memocache/upstreamcache"
)

// mockUpstream provides fake search and analysis clients for integration tests
type mockUpstream struct {
	mu        sync.Mutex
	callCount map[string]int // Track calls to verify caching behavior
	failWith  error
	delay     time.Duration
}

func newMockUpstream() *mockUpstream {
	return &mockUpstream{callCount: make(map[string]int)}
}

func (m *mockUpstream) trackCall(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[method]++
	return m.failWith
}

func (m *mockUpstream) getCallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[method]
}

func (m *mockUpstream) setFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *mockUpstream) Search(ctx context.Context, q upstreamcache.SearchQuery) ([]upstreamcache.SearchResult, error) {
	if err := m.trackCall("Search"); err != nil {
		return nil, err
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	n := q.MaxResults
	if n == 0 {
		n = 2
	}
	results := make([]upstreamcache.SearchResult, n)
	for i := range results {
		results[i] = upstreamcache.SearchResult{
			Title:   fmt.Sprintf("%s result %d", q.Query, i+1),
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Snippet: "snippet",
		}
	}
	return results, nil
}

func (m *mockUpstream) Analyze(ctx context.Context, req upstreamcache.AnalysisRequest) (upstreamcache.Analysis, error) {
	if err := m.trackCall("Analyze"); err != nil {
		return upstreamcache.Analysis{}, err
	}
	return upstreamcache.Analysis{Score: 0.5, Sentiment: "positive"}, nil
}

func TestEndToEndCachedFlow(t *testing.T) {
	container := newTestContainer(t)
	upstream := newMockUpstream()
	ctx := context.Background()

	reports := NewAggregator(container, upstream, upstream)
	req := upstreamcache.ReportRequest{Brand: "Acme", Language: "en", MaxResults: 3}

	// First call should reach every upstream
	first, err := reports.Report(ctx, req)
	if err != nil {
		t.Fatalf("First Report() failed: %v", err)
	}
	if first.FromCache {
		t.Error("First report should be freshly built")
	}
	if upstream.getCallCount("Search") != 1 {
		t.Errorf("Expected 1 search call, got %d", upstream.getCallCount("Search"))
	}
	if upstream.getCallCount("Analyze") != 3 {
		t.Errorf("Expected 3 analyze calls, got %d", upstream.getCallCount("Analyze"))
	}

	// Second call should be served entirely from the results cache
	second, err := reports.Report(ctx, req)
	if err != nil {
		t.Fatalf("Second Report() failed: %v", err)
	}
	if !second.FromCache {
		t.Error("Second report should come from cache")
	}
	if upstream.getCallCount("Search") != 1 || upstream.getCallCount("Analyze") != 3 {
		t.Error("Cached report must not reach upstreams")
	}

	stats := container.StatsAll()
	if stats["search"].ValidEntries != 1 {
		t.Errorf("Expected 1 search entry, got %+v", stats["search"])
	}
	if stats["analysis"].ValidEntries != 3 {
		t.Errorf("Expected 3 analysis entries, got %+v", stats["analysis"])
	}
	if stats["results"].ValidEntries != 1 {
		t.Errorf("Expected 1 results entry, got %+v", stats["results"])
	}

	// Flushing clears every layer, so the next report rebuilds from scratch
	cleared := container.FlushAll()
	if cleared["search"]+cleared["analysis"]+cleared["results"] != 5 {
		t.Errorf("Expected 5 cleared entries, got %v", cleared)
	}

	third, err := reports.Report(ctx, req)
	if err != nil {
		t.Fatalf("Third Report() failed: %v", err)
	}
	if third.FromCache {
		t.Error("Report after flush should be freshly built")
	}
	if upstream.getCallCount("Search") != 2 {
		t.Errorf("Expected 2 search calls after flush, got %d", upstream.getCallCount("Search"))
	}
}

func TestCacheExpiryFlow(t *testing.T) {
	clock := testsupport.NewClock()
	container := newTestContainer(t, func(c *Config) {
		c.Cache.Clock = clock.Now
		c.SearchTTL = time.Hour
		c.AnalysisTTL = 2 * time.Hour
		c.ResultsTTL = 30 * time.Minute
	})
	upstream := newMockUpstream()
	ctx := context.Background()

	reports := NewAggregator(container, upstream, upstream)
	req := upstreamcache.ReportRequest{Brand: "Acme", MaxResults: 2}

	if _, err := reports.Report(ctx, req); err != nil {
		t.Fatalf("Report() failed: %v", err)
	}

	// Results expire first; search and analysis are still live
	clock.Advance(45 * time.Minute)
	res, err := reports.Report(ctx, req)
	if err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	if res.FromCache {
		t.Error("Expected expired report to be rebuilt")
	}
	if upstream.getCallCount("Search") != 1 {
		t.Errorf("Expected search to be served from cache, got %d calls", upstream.getCallCount("Search"))
	}

	// Past the search TTL, search is refetched but analysis is reused
	clock.Advance(time.Hour)
	if _, err := reports.Report(ctx, req); err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	if upstream.getCallCount("Search") != 2 {
		t.Errorf("Expected search refetch, got %d calls", upstream.getCallCount("Search"))
	}
	if upstream.getCallCount("Analyze") != 2 {
		t.Errorf("Expected analysis to stay cached, got %d calls", upstream.getCallCount("Analyze"))
	}
}

func TestErrorPropagation(t *testing.T) {
	container := newTestContainer(t)
	upstream := newMockUpstream()
	upstreamErr := errors.New("search provider down")
	upstream.setFailure(upstreamErr)

	searcher := NewCachedSearcher(container, upstream)
	_, err := searcher.Search(context.Background(), upstreamcache.SearchQuery{Query: "Acme"})
	if err != upstreamErr {
		t.Errorf("Expected upstream error to pass through unchanged, got %v", err)
	}

	if n := container.Store().Len(); n != 0 {
		t.Errorf("Failed fetch must not leave entries, found %d", n)
	}

	upstream.setFailure(nil)
	if _, err := searcher.Search(context.Background(), upstreamcache.SearchQuery{Query: "Acme"}); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if upstream.getCallCount("Search") != 2 {
		t.Errorf("Expected retry to reach upstream, got %d calls", upstream.getCallCount("Search"))
	}
}

func TestConcurrentAccess(t *testing.T) {
	container := newTestContainer(t)
	upstream := newMockUpstream()
	searcher := NewCachedSearcher(container, upstream)
	ctx := context.Background()

	const numGoroutines = 50
	const operationsPerGoroutine = 20

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*operationsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				q := upstreamcache.SearchQuery{Query: fmt.Sprintf("brand-%d", (workerID+j)%10)}
				results, err := searcher.Search(ctx, q)
				if err != nil {
					errs <- err
					return
				}
				if len(results) != 2 {
					errs <- fmt.Errorf("worker %d: expected 2 results, got %d", workerID, len(results))
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	if got := container.Search().Stats().ValidEntries; got != 10 {
		t.Errorf("Expected 10 cached queries, got %d", got)
	}
}

func TestCoalescedContainer(t *testing.T) {
	container := newTestContainer(t, func(c *Config) { c.Cache.Coalesce = true })
	upstream := newMockUpstream()
	upstream.delay = 50 * time.Millisecond
	searcher := NewCachedSearcher(container, upstream)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			searcher.Search(context.Background(), upstreamcache.SearchQuery{Query: "Acme"})
		}()
	}
	wg.Wait()

	if got := upstream.getCallCount("Search"); got != 1 {
		t.Errorf("Expected concurrent misses to share one fetch, got %d", got)
	}
}

func TestNamespacesShareOneStore(t *testing.T) {
	container := newTestContainer(t)
	payload := map[string]any{"query": "Acme"}

	for _, h := range container.Handles() {
		if err := h.Set(payload, h.Namespace()); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
	}

	if container.Store().Len() != 3 {
		t.Errorf("Expected 3 entries in the shared store, got %d", container.Store().Len())
	}

	for _, h := range container.Handles() {
		v, ok, err := h.Get(payload)
		if err != nil || !ok || v != h.Namespace() {
			t.Errorf("%s: Get() = %v, %v, %v", h.Namespace(), v, ok, err)
		}
	}

	container.Results().Clear()
	if ok, _ := container.Search().Has(payload); !ok {
		t.Error("Clearing results must not affect search")
	}
	if got := container.Store().Stats(); got != (cache.Stats{TotalEntries: 2, ValidEntries: 2}) {
		t.Errorf("Unexpected store stats %+v", got)
	}
}
