package regioncache

import (
	"fmt"
	"time"
)

// NoSlidingExpiration turns sliding expiration off for one region even when
// Options.DefaultRegion enables it.
const NoSlidingExpiration time.Duration = -1

// RegionConfig is the per-region tuning. Zero fields inherit from
// Options.DefaultRegion, then from the package defaults.
type RegionConfig struct {
	Name string

	// Expiration is the TTL of every entry written to the region. 0 => 5m
	Expiration time.Duration

	// SlidingExpiration, when positive, makes a hit push the entry's TTL back
	// to Expiration once the remaining TTL has dropped below this threshold.
	SlidingExpiration time.Duration

	// LockTimeout is how long an acquired lock lives in the store. 0 => 30s
	LockTimeout time.Duration

	// AcquireLockTimeout bounds how long Lock keeps retrying. 0 => LockTimeout
	AcquireLockTimeout time.Duration

	// Database selects the logical database passed to Options.Database.
	Database int
}

func (rc RegionConfig) withDefaults(def RegionConfig) RegionConfig {
	rc.Expiration = coalesce(rc.Expiration, coalesce(def.Expiration, DefaultExpiration))
	rc.SlidingExpiration = coalesce(rc.SlidingExpiration, def.SlidingExpiration)
	if rc.SlidingExpiration == NoSlidingExpiration {
		rc.SlidingExpiration = 0
	}
	rc.LockTimeout = coalesce(rc.LockTimeout, coalesce(def.LockTimeout, DefaultLockTimeout))
	rc.AcquireLockTimeout = coalesce(rc.AcquireLockTimeout, coalesce(def.AcquireLockTimeout, rc.LockTimeout))
	return rc
}

// Validate checks a config after defaults have been applied.
func (rc RegionConfig) Validate() error {
	switch {
	case rc.Name == "":
		return fmt.Errorf("%w: region name is required", ErrInvalidConfig)
	case rc.Expiration <= 0:
		return fmt.Errorf("%w: region %q: expiration must be positive, got %s", ErrInvalidConfig, rc.Name, rc.Expiration)
	case rc.SlidingExpiration < 0:
		return fmt.Errorf("%w: region %q: sliding expiration must not be negative, got %s", ErrInvalidConfig, rc.Name, rc.SlidingExpiration)
	case rc.SlidingExpiration > rc.Expiration:
		return fmt.Errorf("%w: region %q: sliding expiration %s exceeds expiration %s", ErrInvalidConfig, rc.Name, rc.SlidingExpiration, rc.Expiration)
	case rc.LockTimeout <= 0:
		return fmt.Errorf("%w: region %q: lock timeout must be positive, got %s", ErrInvalidConfig, rc.Name, rc.LockTimeout)
	case rc.AcquireLockTimeout <= 0:
		return fmt.Errorf("%w: region %q: acquire lock timeout must be positive, got %s", ErrInvalidConfig, rc.Name, rc.AcquireLockTimeout)
	case rc.Database < 0:
		return fmt.Errorf("%w: region %q: database must not be negative, got %d", ErrInvalidConfig, rc.Name, rc.Database)
	}
	return nil
}
