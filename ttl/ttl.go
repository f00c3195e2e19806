// Package ttl maps record time-to-live durations onto the expiration values
// understood by the remote store.
// A zero TTL keeps the namespace default, Never keeps the record forever, and any
// positive TTL is clamped to the configured bounds and rounded up to whole seconds.
package ttl

import (
	"math"
	"time"

	"github.com/gozephyr/aerospike-mapstore/errors"
)

// Never marks a record that must not expire.
const Never time.Duration = -1

// Wire values for the record expiration field.
const (
	// ExpirationServerDefault applies the namespace default-ttl
	ExpirationServerDefault uint32 = 0
	// ExpirationNever disables expiration for the record
	ExpirationNever uint32 = math.MaxUint32
	// ExpirationDontUpdate keeps the current expiration on update
	ExpirationDontUpdate uint32 = math.MaxUint32 - 1
)

// Config represents configuration for record expiration
type Config struct {
	// DefaultTTL is used when no TTL is configured for the map
	DefaultTTL time.Duration

	// MinTTL is the minimum allowed TTL value
	MinTTL time.Duration

	// MaxTTL is the maximum allowed TTL value
	MaxTTL time.Duration
}

// DefaultConfig returns the default TTL configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 0,
		MinTTL:     1 * time.Second,
		MaxTTL:     10 * 365 * 24 * time.Hour,
	}
}

// Validate validates a TTL value against the configuration
func Validate(ttl time.Duration, config Config) error {
	if ttl == 0 || ttl == Never {
		return nil
	}
	if ttl < 0 {
		return errors.Invalid("ttl.Validate", errors.ErrInvalidTTL)
	}
	if ttl < config.MinTTL || ttl > config.MaxTTL {
		return errors.Invalid("ttl.Validate", errors.ErrInvalidTTL)
	}
	return nil
}

// Normalize clamps a positive TTL into the configured bounds
func Normalize(ttl time.Duration, config Config) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	if ttl < config.MinTTL {
		return config.MinTTL
	}
	if config.MaxTTL > 0 && ttl > config.MaxTTL {
		return config.MaxTTL
	}
	return ttl
}

// Expiration converts a TTL into the record expiration in seconds
func Expiration(ttl time.Duration, config Config) uint32 {
	if ttl == 0 {
		ttl = config.DefaultTTL
	}
	switch {
	case ttl == 0:
		return ExpirationServerDefault
	case ttl < 0:
		return ExpirationNever
	}

	ttl = Normalize(ttl, config)
	seconds := int64((ttl + time.Second - 1) / time.Second)
	if seconds >= int64(ExpirationDontUpdate) {
		return ExpirationDontUpdate - 1
	}
	return uint32(seconds)
}

// GetExpirationTime calculates when a record written at now with the given
// expiration expires. The zero time means the record does not expire.
func GetExpirationTime(now time.Time, expiration uint32) time.Time {
	switch expiration {
	case ExpirationServerDefault, ExpirationNever, ExpirationDontUpdate:
		return time.Time{}
	}
	return now.Add(time.Duration(expiration) * time.Second)
}

// IsExpired checks if a given time has expired
func IsExpired(expirationTime time.Time) bool {
	if expirationTime.IsZero() {
		return false // Zero time means no expiration
	}
	return time.Now().After(expirationTime)
}
