package di

import (
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	errors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-memocache/cache"
	"github.com/goliatone/go-memocache/upstreamcache"
)

// Config configures the shared store and the TTL policy of each prebuilt cache.
type Config struct {
	Cache       cache.Config  `yaml:"cache"`
	SearchTTL   time.Duration `yaml:"search_ttl"`
	AnalysisTTL time.Duration `yaml:"analysis_ttl"`
	ResultsTTL  time.Duration `yaml:"results_ttl"`

	// Metrics is shared by the three handles. Nil records nothing.
	Metrics cache.Metrics `yaml:"-"`
}

// DefaultConfig returns the store defaults with search 24h, analysis 12h
// and results 6h.
func DefaultConfig() Config {
	return Config{
		Cache:       cache.DefaultConfig(),
		SearchTTL:   cache.TTLSearch,
		AnalysisTTL: cache.TTLAnalysis,
		ResultsTTL:  cache.TTLResults,
	}
}

// Validate checks the store configuration and the per cache TTLs.
func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}

	err := validation.ValidateStruct(&c,
		validation.Field(&c.SearchTTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.AnalysisTTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.ResultsTTL, validation.Required, validation.Min(time.Nanosecond)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid container configuration").
			WithTextCode("INVALID_CONTAINER_CONFIG")
	}
	return nil
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "failed to parse container config").
			WithTextCode("INVALID_CONFIG_FILE")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryOperation, "failed to read container config").
			WithMetadata(map[string]any{"path": path})
	}
	return ParseConfig(data)
}

// Container provides dependency injection for cache related components.
// It owns one shared store and the three prebuilt handles over it, and
// provides factory functions for the cached call sites.
type Container struct {
	store    *cache.MemoryStore
	search   *cache.Handle
	analysis *cache.Handle
	results  *cache.Handle
	config   Config
	logger   *slog.Logger
}

// NewContainer creates a new DI container with the provided configuration.
// Close the container to stop the store janitor.
func NewContainer(config Config) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Cache.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := cache.NewStore(config.Cache)
	if err != nil {
		return nil, err
	}

	c := &Container{store: store, config: config, logger: logger}

	handles := []struct {
		dst       **cache.Handle
		namespace string
		ttl       time.Duration
	}{
		{&c.search, cache.NamespaceSearch, config.SearchTTL},
		{&c.analysis, cache.NamespaceAnalysis, config.AnalysisTTL},
		{&c.results, cache.NamespaceResults, config.ResultsTTL},
	}
	for _, h := range handles {
		handle, err := cache.NewHandle(store, h.namespace,
			cache.WithDefaultTTL(h.ttl),
			cache.WithCoalescing(config.Cache.Coalesce),
			cache.WithMetrics(config.Metrics),
			cache.WithLogger(logger),
		)
		if err != nil {
			store.Close()
			return nil, err
		}
		*h.dst = handle
	}

	return c, nil
}

// NewContainerWithDefaults creates a new DI container using DefaultConfig.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

// Store returns the shared store. Entries written directly use the
// short-term default TTL.
func (c *Container) Store() *cache.MemoryStore {
	return c.store
}

// Search returns the handle for raw search results.
func (c *Container) Search() *cache.Handle {
	return c.search
}

// Analysis returns the handle for model analysis.
func (c *Container) Analysis() *cache.Handle {
	return c.analysis
}

// Results returns the handle for finalized aggregate results.
func (c *Container) Results() *cache.Handle {
	return c.results
}

// Handles returns the three prebuilt handles in search, analysis, results order.
func (c *Container) Handles() []*cache.Handle {
	return []*cache.Handle{c.search, c.analysis, c.results}
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// FlushAll clears every prebuilt handle and returns the number of entries
// removed per namespace. Entries outside the three namespaces are kept.
func (c *Container) FlushAll() map[string]int {
	cleared := make(map[string]int, 3)
	total := 0
	for _, h := range c.Handles() {
		n := h.Clear()
		cleared[h.Namespace()] = n
		total += n
	}
	c.logger.Info("cache flushed", slog.Int("removed", total))
	return cleared
}

// StatsAll returns the stats of every prebuilt handle keyed by namespace.
func (c *Container) StatsAll() map[string]cache.Stats {
	stats := make(map[string]cache.Stats, 3)
	for _, h := range c.Handles() {
		stats[h.Namespace()] = h.Stats()
	}
	return stats
}

// Close stops the store janitor. The store stays readable afterwards.
func (c *Container) Close() error {
	return c.store.Close()
}

// NewCachedSearcher wraps base with the container's search cache.
func NewCachedSearcher(container *Container, base upstreamcache.Searcher) *upstreamcache.CachedSearcher {
	return upstreamcache.NewCachedSearcher(base, container.search)
}

// NewCachedAnalyzer wraps base with the container's analysis cache.
func NewCachedAnalyzer(container *Container, base upstreamcache.Analyzer) *upstreamcache.CachedAnalyzer {
	return upstreamcache.NewCachedAnalyzer(base, container.analysis)
}

// NewAggregator wires searcher and analyzer through their caches and caches
// finished reports in the container's results cache.
func NewAggregator(container *Container, searcher upstreamcache.Searcher, analyzer upstreamcache.Analyzer, opts ...upstreamcache.AggregatorOption) *upstreamcache.Aggregator {
	return upstreamcache.NewAggregator(
		NewCachedSearcher(container, searcher),
		NewCachedAnalyzer(container, analyzer),
		container.results,
		opts...,
	)
}
