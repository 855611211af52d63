package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-memocache/pkg/testsupport"
)

func newTestStore(t *testing.T, clock *testsupport.Clock) *MemoryStore {
	t.Helper()

	cfg := DefaultConfig()
	cfg.SweepInterval = 0
	if clock != nil {
		cfg.Clock = clock.Now
	}

	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestHandle(t *testing.T, store Store, namespace string, opts ...HandleOption) *Handle {
	t.Helper()

	h, err := NewHandle(store, namespace, opts...)
	if err != nil {
		t.Fatalf("NewHandle() error = %v", err)
	}
	return h
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t, newTestStore(t, nil), NamespaceSearch)
	payload := map[string]any{"query": "Acme", "language": "en", "maxResults": 5}

	var calls int
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"r1", "r2"}, nil
	}

	first, err := GetOrCompute(ctx, h, payload, fetch)
	if err != nil {
		t.Fatalf("first GetOrCompute() error = %v", err)
	}
	if first.FromCache {
		t.Error("first call must not come from cache")
	}
	if len(first.Value) != 2 || first.Value[0] != "r1" || first.Value[1] != "r2" {
		t.Errorf("first value = %v, want [r1 r2]", first.Value)
	}

	second, err := GetOrCompute(ctx, h, payload, fetch)
	if err != nil {
		t.Fatalf("second GetOrCompute() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second call must come from cache")
	}
	if len(second.Value) != 2 || second.Value[0] != "r1" || second.Value[1] != "r2" {
		t.Errorf("second value = %v, want [r1 r2]", second.Value)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestGetOrCompute_EndToEndKey(t *testing.T) {
	h := newTestHandle(t, newTestStore(t, nil), NamespaceSearch)

	key, err := h.Key(map[string]any{"query": "Acme", "language": "en", "maxResults": 5})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	const want = "search:336e6e2e97d4283929cd4981595b40abea7c608f647c2b19e9121ff437362faf"
	if key != want {
		t.Errorf("Key() = %s, want %s", key, want)
	}
}

func TestGetOrCompute_FailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	h := newTestHandle(t, store, NamespaceAnalysis)
	payload := map[string]any{"text": "review"}
	upstreamErr := errors.New("upstream unavailable")

	var calls int
	_, err := GetOrCompute(ctx, h, payload, func(ctx context.Context) (string, error) {
		calls++
		return "", upstreamErr
	})
	if err != upstreamErr {
		t.Fatalf("expected the fetch error unchanged, got %v", err)
	}

	if ok, _ := h.Has(payload); ok {
		t.Error("a failed fetch must not leave an entry")
	}
	if store.Len() != 0 {
		t.Errorf("store should be empty, Len() = %d", store.Len())
	}

	res, err := GetOrCompute(ctx, h, payload, func(ctx context.Context) (string, error) {
		calls++
		return "positive", nil
	})
	if err != nil {
		t.Fatalf("retry GetOrCompute() error = %v", err)
	}
	if res.FromCache || res.Value != "positive" {
		t.Errorf("retry result = %+v, want fresh positive", res)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2", calls)
	}
}

func TestGetOrCompute_KeyDerivationFailure(t *testing.T) {
	store := newTestStore(t, nil)
	h := newTestHandle(t, store, NamespaceSearch)

	called := false
	_, err := GetOrCompute(context.Background(), h, map[string]any{"fn": func() {}}, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})
	if !IsKeyDerivationError(err) {
		t.Fatalf("expected key derivation error, got %v", err)
	}
	if called {
		t.Error("fetch must not run when the key cannot be derived")
	}
	if store.Len() != 0 {
		t.Error("store must be untouched")
	}
}

func TestGetOrCompute_ExpiryRefetches(t *testing.T) {
	clock := testsupport.NewClock()
	h := newTestHandle(t, newTestStore(t, clock), NamespaceResults)
	ctx := context.Background()

	var calls int
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	if _, err := GetOrCompute(ctx, h, "acme", fetch, WithTTL(100*time.Millisecond)); err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}

	clock.Advance(50 * time.Millisecond)
	res, _ := GetOrCompute(ctx, h, "acme", fetch, WithTTL(100*time.Millisecond))
	if !res.FromCache || res.Value != 1 {
		t.Errorf("at 50ms result = %+v, want cached 1", res)
	}

	clock.Advance(100 * time.Millisecond)
	res, _ = GetOrCompute(ctx, h, "acme", fetch, WithTTL(100*time.Millisecond))
	if res.FromCache || res.Value != 2 {
		t.Errorf("at 150ms result = %+v, want fresh 2", res)
	}
}

func TestGetOrCompute_InvalidResultType(t *testing.T) {
	h := newTestHandle(t, newTestStore(t, nil), NamespaceSearch)

	if err := h.Set("payload", "wrong-type"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	result, err := GetOrCompute(context.Background(), h, "payload", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}
	if result.Value != 0 {
		t.Errorf("expected zero value (0) but got: %v", result.Value)
	}
}

func TestGetOrCompute_NilInterfaceValue(t *testing.T) {
	type Scorer interface {
		Score() float64
	}

	h := newTestHandle(t, newTestStore(t, nil), NamespaceAnalysis)
	ctx := context.Background()
	fetch := func(ctx context.Context) (Scorer, error) { return nil, nil }

	if _, err := GetOrCompute(ctx, h, "p", fetch); err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}

	res, err := GetOrCompute(ctx, h, "p", fetch)
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if !res.FromCache || res.Value != nil {
		t.Errorf("expected cached nil, got %+v", res)
	}
}

func TestHandle_GetOrComputeUntyped(t *testing.T) {
	h := newTestHandle(t, newTestStore(t, nil), NamespaceSearch)

	res, err := h.GetOrCompute(context.Background(), "q", func(ctx context.Context) (any, error) {
		return map[string]int{"hits": 3}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if res.FromCache {
		t.Error("expected fresh value")
	}
	if m, ok := res.Value.(map[string]int); !ok || m["hits"] != 3 {
		t.Errorf("unexpected value %v", res.Value)
	}
}

func TestGetOrCompute_ConcurrentMissesWithoutCoalescing(t *testing.T) {
	h := newTestHandle(t, newTestStore(t, nil), NamespaceSearch)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			GetOrCompute(context.Background(), h, "same", fetch)
		}()
	}

	waitFor(t, func() bool { return calls.Load() == 2 })
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 2 {
		t.Errorf("expected both concurrent misses to fetch, got %d", got)
	}
}

func TestGetOrCompute_CoalescedMisses(t *testing.T) {
	h := newTestHandle(t, newTestStore(t, nil), NamespaceSearch, WithCoalescing(true))

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "v", nil
	}

	const callers = 5
	results := make(chan Result[string], callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res, _ := GetOrCompute(context.Background(), h, "same", fetch)
		results <- res
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := GetOrCompute(context.Background(), h, "same", fetch)
			results <- res
		}()
	}

	// Give the followers time to either join the flight or hit the cache.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single fetch, got %d", got)
	}
	for res := range results {
		if res.Value != "v" {
			t.Errorf("unexpected value %q", res.Value)
		}
	}
}

func TestGetOrCompute_CoalescedFetchOutlivesCaller(t *testing.T) {
	h := newTestHandle(t, newTestStore(t, nil), NamespaceSearch, WithCoalescing(true))

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	fetch := func(fctx context.Context) (string, error) {
		defer close(done)
		close(started)
		<-release
		if fctx.Err() != nil {
			return "", fctx.Err()
		}
		return "late", nil
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := GetOrCompute(ctx, h, "slow", fetch)
		errCh <- err
	}()

	<-started
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the abandoning caller, got %v", err)
	}

	close(release)
	<-done

	waitFor(t, func() bool {
		v, ok, _ := h.Get("slow")
		return ok && v == "late"
	})
}

func TestGetOrCompute_CoalescedFetchPanic(t *testing.T) {
	h := newTestHandle(t, newTestStore(t, nil), NamespaceResults, WithCoalescing(true))

	_, err := GetOrCompute(context.Background(), h, "boom", func(context.Context) (string, error) {
		panic("upstream exploded")
	})
	if !errors.Is(err, ErrFetchPanicked) {
		t.Fatalf("expected ErrFetchPanicked, got %v", err)
	}
	if ok, _ := h.Has("boom"); ok {
		t.Error("a panicked fetch must not be cached")
	}

	res, err := GetOrCompute(context.Background(), h, "boom", func(context.Context) (string, error) {
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("retry after panic failed: %v", err)
	}
	if res.Value != "recovered" || res.FromCache {
		t.Errorf("unexpected retry result %+v", res)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
