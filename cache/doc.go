// Package cache memoizes expensive computations behind namespaced handles
// that share one in-memory, expiring key value store.
//
// # Overview
//
// The package exports three building blocks:
//
//   - Store: the shared key value contract, implemented by MemoryStore
//   - KeyDeriver: turns an arbitrary payload into a SHA-256 hex digest
//   - Handle: a namespaced view that prefixes every key and exposes GetOrCompute
//
// # Basic Usage
//
//	store, err := cache.NewStore(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	search, err := cache.NewHandle(store, cache.NamespaceSearch, cache.WithDefaultTTL(cache.TTLSearch))
//	if err != nil {
//		return err
//	}
//
//	payload := map[string]any{"query": "Acme", "language": "en", "maxResults": 5}
//	res, err := cache.GetOrCompute(ctx, search, payload, func(ctx context.Context) ([]string, error) {
//		return client.Search(ctx, "Acme")
//	})
//	// res.Value holds the results, res.FromCache reports whether the fetch was skipped.
//
// # Keys
//
// A key is namespace + ":" + digest, where digest is the lowercase hex
// SHA-256 of the payload's canonical form. The default text canonicalizer
// walks the payload with reflection:
//
//   - Maps: pairs sorted by serialized key
//   - Structs: exported fields in declaration order
//   - Slices and arrays: elements in order
//   - Strings: quoted, so separators inside values are unambiguous
//   - encoding.TextMarshaler values (time.Time): their text form
//
// Functions, channels, unsafe pointers, complex numbers and cyclic values have
// no canonical form; payloads holding them fail with a key derivation error
// before the store is touched.
//
// Namespaces are used verbatim. Only the empty string and namespaces
// containing the separator are rejected.
// NewMsgpackCanonicalizer offers a binary alternative with sorted map keys.
//
// Keys are stable for the life of the process. They are not guaranteed to
// match across releases of this package.
//
// # Expiry
//
// Every entry carries an expiry time. An entry is live strictly before it
// expires; an expired entry behaves as absent and is removed by the read
// that finds it, by the scan that follows each write, or by the periodic
// janitor. Stats classifies entries without removing any.
//
// # Failures
//
// Errors returned by a fetch function are passed through unchanged and
// nothing is stored, so the next call retries the fetch. Key derivation
// errors are go-errors values with text code KEY_DERIVATION_FAILED.
//
// # Concurrent Misses
//
// By default two callers that miss on the same key at the same time both
// run their fetch; the last write wins. WithCoalescing(true) shares one
// in-flight fetch between them. The shared fetch is detached from caller
// cancellation: a caller whose context ends returns early while the fetch
// still completes and populates the store.
package cache
