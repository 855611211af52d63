package kvstore

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	errors "github.com/goliatone/go-errors"
)

// Config holds the settings for a Store.
type Config struct {
	// DefaultTTL applies to writes that do not carry their own TTL.
	// Must be greater than 0.
	DefaultTTL time.Duration

	// SweepInterval sets how often the janitor removes expired entries.
	// Zero disables the janitor; lazy and write triggered eviction still apply.
	SweepInterval time.Duration

	// SweepOnSet runs a full expiry scan after every write.
	SweepOnSet bool

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger receives sweep and lifecycle records. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the short term defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    30 * time.Minute,
		SweepInterval: time.Minute,
		SweepOnSet:    true,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.SweepInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid store configuration").
			WithTextCode("INVALID_STORE_CONFIG")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
