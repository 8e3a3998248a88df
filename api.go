package regioncache

import (
	"context"

	c "github.com/unkn0wn-root/regioncache/codec"
	"github.com/unkn0wn-root/regioncache/keyspace"
	pr "github.com/unkn0wn-root/regioncache/provider"
	"github.com/unkn0wn-root/regioncache/retry"
)

// Cache is a set of named regions sharing one store and one codec.
// Every operation takes the region name; unknown names are created on first
// use from Options.DefaultRegion.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Region returns the handle for name, creating it on first use.
	Region(name string) (Region[V], error)

	Put(ctx context.Context, region, key string, value V) error
	Get(ctx context.Context, region, key string) (v V, ok bool, err error)
	Remove(ctx context.Context, region, key string) error
	Clear(ctx context.Context, region string) error

	Lock(ctx context.Context, region, key string) error
	Unlock(ctx context.Context, region, key string) error
}

// Region is one generation-scoped keyspace. Clear drops every entry in O(1)
// by moving the region to a new generation.
type Region[V any] interface {
	Name() string
	Config() RegionConfig
	Namespace() *keyspace.Namespace

	Put(ctx context.Context, key string, value V) error
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// Lock takes a store-wide exclusive lock on key. It blocks, retrying
	// per Options.LockRetry, for at most the region's AcquireLockTimeout.
	Lock(ctx context.Context, key string) error
	// Unlock releases a lock taken by Lock in this process.
	Unlock(ctx context.Context, key string) error
}

// Options tune the behavior of the region cache.
// Only Provider and Codec are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Provider pr.Provider
	Codec    c.Codec[V]

	KeyPrefix     string         // prepended to every store key; "" => "regioncache"
	DefaultRegion RegionConfig   // template for regions not listed in Regions (Name ignored)
	Regions       []RegionConfig // pre-configured regions, created eagerly

	// Database, if set, returns the store for a region. It is called once per
	// region; a nil store or a nil Database means Provider. The cache never
	// closes the stores it returns.
	Database func(rc RegionConfig) (pr.Provider, error)

	OnError        ErrorHandler        // nil => DefaultErrorHandler
	OnLockFailed   LockFailedHandler   // nil => DefaultLockFailedHandler
	OnUnlockFailed UnlockFailedHandler // nil => DefaultUnlockFailedHandler
	TokenFactory   TokenFactory        // nil => UUIDTokens

	LockRetry        retry.Strategy // nil => retry.FullJitter{}
	GenerationRetry  retry.Strategy // nil => DefaultGenerationRetry()
	LockRegistrySize int            // held locks tracked per region; 0 => 10000

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	Disabled      bool // every operation becomes a no-op; Get always misses
	CloseProvider bool // Close also closes Provider
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
