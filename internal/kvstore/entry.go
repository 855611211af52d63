package kvstore

import "time"

// Entry is a single cached value with its timestamps.
type Entry struct {
	Key       string
	Value     any
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is logically dead at now.
// An entry is alive strictly before ExpiresAt.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTL returns the lifetime the entry was stored with.
func (e *Entry) TTL() time.Duration {
	return e.ExpiresAt.Sub(e.CreatedAt)
}

// Stats is a point in time classification of the entries held by a store.
type Stats struct {
	TotalEntries   int `json:"totalEntries"`
	ValidEntries   int `json:"validEntries"`
	ExpiredEntries int `json:"expiredEntries"`
}
