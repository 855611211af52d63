package cache

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"
)

// Handle is a namespaced view over a shared Store. Keys produced by a Handle
// are namespace + ":" + digest(payload), so handles with different
// namespaces never address the same entry.
type Handle struct {
	store      Store
	namespace  string
	prefix     string
	defaultTTL time.Duration
	deriver    *KeyDeriver
	coalesce   bool
	flights    *singleflight.Group
	metrics    Metrics
	logger     *slog.Logger
}

// NewHandle binds namespace to store. The namespace is used verbatim and
// must pass ValidateNamespace; since it cannot contain the separator, one
// namespace's prefix never matches another's keys.
func NewHandle(store Store, namespace string, opts ...HandleOption) (*Handle, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	h := &Handle{
		store:     store,
		namespace: namespace,
		prefix:    namespace + KeySeparator,
		deriver:   defaultKeyDeriver,
		flights:   &singleflight.Group{},
		metrics:   NoopMetrics(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(slog.String("cache", h.namespace))

	return h, nil
}

// Namespace returns the namespace the handle was built with.
func (h *Handle) Namespace() string {
	return h.namespace
}

// DefaultTTL returns the TTL used when a write carries none. Zero means the
// store default applies.
func (h *Handle) DefaultTTL() time.Duration {
	return h.defaultTTL
}

// Key derives the store key for payload.
func (h *Handle) Key(payload any) (string, error) {
	digest, err := h.deriver.Derive(payload)
	if err != nil {
		return "", err
	}
	return h.prefix + digest, nil
}

// Get returns the live value stored for payload.
func (h *Handle) Get(payload any) (any, bool, error) {
	key, err := h.Key(payload)
	if err != nil {
		return nil, false, err
	}
	v, ok := h.store.Get(key)
	return v, ok, nil
}

// Has reports whether a live value is stored for payload.
func (h *Handle) Has(payload any) (bool, error) {
	key, err := h.Key(payload)
	if err != nil {
		return false, err
	}
	return h.store.Has(key), nil
}

// Delete removes the value stored for payload and reports whether one existed.
func (h *Handle) Delete(payload any) (bool, error) {
	key, err := h.Key(payload)
	if err != nil {
		return false, err
	}
	return h.store.Delete(key), nil
}

// Set stores value for payload, replacing any previous entry.
func (h *Handle) Set(payload any, value any, opts ...SetOption) error {
	key, err := h.Key(payload)
	if err != nil {
		return err
	}
	h.store.Set(key, value, h.resolveTTL(opts))
	return nil
}

// GetOrCompute is the untyped form of the package level GetOrCompute.
func (h *Handle) GetOrCompute(ctx context.Context, payload any, fetchFn FetchFn[any], opts ...SetOption) (Result[any], error) {
	return GetOrCompute(ctx, h, payload, fetchFn, opts...)
}

// Clear removes every entry in this namespace and returns how many were
// removed. Other namespaces in the same store are untouched.
func (h *Handle) Clear() int {
	n := h.store.DeleteByPrefix(h.prefix)
	h.logger.Info("namespace cleared", slog.Int("removed", n))
	return n
}

// Stats reports the entries held under this namespace.
func (h *Handle) Stats() Stats {
	return h.store.StatsPrefix(h.prefix)
}

func (h *Handle) resolveTTL(opts []SetOption) time.Duration {
	so := setOptions{ttl: h.defaultTTL}
	for _, opt := range opts {
		opt(&so)
	}
	// zero or negative falls through to the store default
	return so.ttl
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
