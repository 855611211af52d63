package cache

import (
	"log/slog"
	"time"
)

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithDefaultTTL sets the TTL for writes through the handle that carry no
// TTL of their own. Non positive values defer to the store default.
func WithDefaultTTL(ttl time.Duration) HandleOption {
	return func(h *Handle) {
		h.defaultTTL = ttl
	}
}

// WithKeyDeriver replaces the default text based key deriver.
func WithKeyDeriver(d *KeyDeriver) HandleOption {
	return func(h *Handle) {
		if d != nil {
			h.deriver = d
		}
	}
}

// WithCoalescing collapses concurrent misses on the same key into a single
// fetch. Disabled by default. A coalesced fetch that panics is recovered and
// every waiting caller gets an error wrapping ErrFetchPanicked; without
// coalescing the panic propagates to the caller as usual.
func WithCoalescing(enabled bool) HandleOption {
	return func(h *Handle) {
		h.coalesce = enabled
	}
}

// WithMetrics records lookups and fetches on m.
func WithMetrics(m Metrics) HandleOption {
	return func(h *Handle) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithLogger sets the logger used for miss, failure and clear records.
func WithLogger(logger *slog.Logger) HandleOption {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// SetOption configures a single write.
type SetOption func(*setOptions)

type setOptions struct {
	ttl time.Duration
}

// WithTTL overrides the expiry for one entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
	}
}
