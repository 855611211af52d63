package kvstore

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store is a process wide, in-memory key value store with per entry expiry.
//
// Expired entries are removed lazily when a read discovers them, by a full
// scan after each write (when SweepOnSet is enabled), and by a periodic
// janitor (when SweepInterval is positive). There is no size bound.
//
// Store is safe for concurrent use.
type Store struct {
	items  *xsync.MapOf[string, *Entry]
	cfg    Config
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// New creates a Store from cfg and starts the janitor if configured.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &Store{
		items:  xsync.NewMapOf[string, *Entry](),
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "kvstore")),
		done:   make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go s.janitor()
	}

	return s, nil
}

// DefaultTTL returns the TTL applied to writes without an explicit one.
func (s *Store) DefaultTTL() time.Duration {
	return s.cfg.DefaultTTL
}

// Set inserts or overwrites key. A non positive ttl selects the default.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	now := s.cfg.Clock()
	s.items.Store(key, &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})

	if s.cfg.SweepOnSet {
		s.Sweep()
	}
}

// Get returns the value stored under key if it has not expired.
// An expired entry is removed before reporting the miss.
func (s *Store) Get(key string) (any, bool) {
	e, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Entry returns a copy of the live entry stored under key.
func (s *Store) Entry(key string) (Entry, bool) {
	e, ok := s.lookup(key)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Has reports whether key holds a live entry, evicting it if expired.
func (s *Store) Has(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

// Delete removes key and reports whether an entry was present.
func (s *Store) Delete(key string) bool {
	_, loaded := s.items.LoadAndDelete(key)
	return loaded
}

// DeleteByPrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (s *Store) DeleteByPrefix(prefix string) int {
	removed := 0
	for _, key := range s.keys(prefix) {
		if s.Delete(key) {
			removed++
		}
	}
	return removed
}

// Clear removes all entries and returns how many were held.
func (s *Store) Clear() int {
	n := s.items.Size()
	s.items.Clear()
	s.logger.Info("store cleared", slog.Int("entries", n))
	return n
}

// Stats classifies every entry as valid or expired. It never evicts.
func (s *Store) Stats() Stats {
	return s.StatsPrefix("")
}

// StatsPrefix is Stats restricted to keys starting with prefix.
func (s *Store) StatsPrefix(prefix string) Stats {
	now := s.cfg.Clock()
	var st Stats
	s.items.Range(func(key string, e *Entry) bool {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		st.TotalEntries++
		if e.Expired(now) {
			st.ExpiredEntries++
		} else {
			st.ValidEntries++
		}
		return true
	})
	return st
}

// Keys returns the sorted keys currently held, expired or not.
func (s *Store) Keys() []string {
	return s.keys("")
}

// Len returns the number of physically held entries.
func (s *Store) Len() int {
	return s.items.Size()
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.cfg.Clock()
	var expired []*Entry
	s.items.Range(func(_ string, e *Entry) bool {
		if e.Expired(now) {
			expired = append(expired, e)
		}
		return true
	})

	removed := 0
	for _, e := range expired {
		if s.evict(e) {
			removed++
		}
	}
	return removed
}

// Close stops the janitor. Close is idempotent and the store remains usable.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *Store) lookup(key string) (*Entry, bool) {
	e, ok := s.items.Load(key)
	if !ok {
		return nil, false
	}
	if e.Expired(s.cfg.Clock()) {
		s.evict(e)
		return nil, false
	}
	return e, true
}

// evict deletes e only if it is still the entry stored under its key, so a
// concurrent refresh of the same key survives.
func (s *Store) evict(e *Entry) bool {
	removed := false
	s.items.Compute(e.Key, func(current *Entry, loaded bool) (*Entry, bool) {
		if !loaded {
			return current, true
		}
		if current == e {
			removed = true
			return current, true
		}
		return current, false
	})
	return removed
}

func (s *Store) keys(prefix string) []string {
	var keys []string
	s.items.Range(func(key string, _ *Entry) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired entries swept", slog.Int("removed", n))
			}
		}
	}
}
