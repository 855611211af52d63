package cache

import (
	"log/slog"
	"os"
	"time"

	errors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-memocache/internal/kvstore"
)

// Default TTLs for the prebuilt logical caches.
const (
	TTLShortTerm = 30 * time.Minute
	TTLSearch    = 24 * time.Hour
	TTLAnalysis  = 12 * time.Hour
	TTLResults   = 6 * time.Hour
)

// Config exposes store configuration options for consumers of the cache package.
type Config struct {
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepOnSet    bool          `yaml:"sweep_on_set"`
	// Coalesce enables miss coalescing on handles built from this config.
	Coalesce bool `yaml:"coalesce"`

	Logger *slog.Logger     `yaml:"-"`
	Clock  func() time.Time `yaml:"-"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(kvstore.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewStore constructs the in-memory store using the provided configuration.
// Callers should Close the store to stop its janitor.
func NewStore(cfg Config) (*MemoryStore, error) {
	return kvstore.New(cfg.toInternal())
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
// Durations use Go syntax, e.g. "30m" or "24h".
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "failed to parse cache config").
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
		return Config{}, errors.Wrap(err, errors.CategoryOperation, "failed to read cache config").
			WithMetadata(map[string]any{"path": path})
	}
	return ParseConfig(data)
}

func (c Config) toInternal() kvstore.Config {
	return kvstore.Config{
		DefaultTTL:    c.DefaultTTL,
		SweepInterval: c.SweepInterval,
		SweepOnSet:    c.SweepOnSet,
		Clock:         c.Clock,
		Logger:        c.Logger,
	}
}

func convertFromInternal(cfg kvstore.Config) Config {
	return Config{
		DefaultTTL:    cfg.DefaultTTL,
		SweepInterval: cfg.SweepInterval,
		SweepOnSet:    cfg.SweepOnSet,
		Clock:         cfg.Clock,
		Logger:        cfg.Logger,
	}
}
