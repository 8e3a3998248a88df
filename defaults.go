package regioncache

import (
	"time"

	"github.com/unkn0wn-root/regioncache/retry"
)

const (
	DefaultKeyPrefix        = "regioncache"
	DefaultExpiration       = 5 * time.Minute
	DefaultLockTimeout      = 30 * time.Second
	DefaultLockRegistrySize = 10000

	// DefaultGenerationAttempts bounds guarded tries per operation.
	DefaultGenerationAttempts = 5
)

// DefaultGenerationRetry backs off briefly between generation conflicts.
func DefaultGenerationRetry() retry.Strategy {
	return retry.FullJitter{
		Base:        time.Millisecond,
		Cap:         50 * time.Millisecond,
		MaxAttempts: DefaultGenerationAttempts,
	}
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
