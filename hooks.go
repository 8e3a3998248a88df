package regioncache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A Get finished. hit is false for plain misses and for entries dropped on read.
	Lookup(region string, hit bool)

	// The in-process generation of a region moved forward.
	// cause ∈ {"sync", "clear"}
	GenerationAdvanced(region string, from, to int64, cause string)

	// The store had lost or rolled back the generation and it was written back.
	GenerationRestored(region string, gen int64)

	// A guarded write or read lost its generation precondition.
	GenerationConflict(region string, method Method, attempt int)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(region, storageKey, reason string)

	// A sliding-expiration hit pushed the entry's TTL back to the full expiration.
	ExpirationSlid(region, key string)

	// The error handler swallowed err.
	ErrorSuppressed(region string, method Method, err error)

	LockAcquired(region, key string, attempts int, waited time.Duration)
	LockFailed(region, key string, attempts int, waited time.Duration)

	// held is false when the lock was never taken by this process,
	// true when it expired or was taken over before Unlock.
	UnlockFailed(region, key string, held bool)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Lookup(string, bool)                             {}
func (NopHooks) GenerationAdvanced(string, int64, int64, string) {}
func (NopHooks) GenerationRestored(string, int64)                {}
func (NopHooks) GenerationConflict(string, Method, int)          {}
func (NopHooks) SelfHeal(string, string, string)                 {}
func (NopHooks) ExpirationSlid(string, string)                   {}
func (NopHooks) ErrorSuppressed(string, Method, error)           {}
func (NopHooks) LockAcquired(string, string, int, time.Duration) {}
func (NopHooks) LockFailed(string, string, int, time.Duration)   {}
func (NopHooks) UnlockFailed(string, string, bool)               {}

// MultiHooks fans every event out to each element in order.
type MultiHooks []Hooks

func (m MultiHooks) Lookup(region string, hit bool) {
	for _, h := range m {
		h.Lookup(region, hit)
	}
}

func (m MultiHooks) GenerationAdvanced(region string, from, to int64, cause string) {
	for _, h := range m {
		h.GenerationAdvanced(region, from, to, cause)
	}
}

func (m MultiHooks) GenerationRestored(region string, gen int64) {
	for _, h := range m {
		h.GenerationRestored(region, gen)
	}
}

func (m MultiHooks) GenerationConflict(region string, method Method, attempt int) {
	for _, h := range m {
		h.GenerationConflict(region, method, attempt)
	}
}

func (m MultiHooks) SelfHeal(region, storageKey, reason string) {
	for _, h := range m {
		h.SelfHeal(region, storageKey, reason)
	}
}

func (m MultiHooks) ExpirationSlid(region, key string) {
	for _, h := range m {
		h.ExpirationSlid(region, key)
	}
}

func (m MultiHooks) ErrorSuppressed(region string, method Method, err error) {
	for _, h := range m {
		h.ErrorSuppressed(region, method, err)
	}
}

func (m MultiHooks) LockAcquired(region, key string, attempts int, waited time.Duration) {
	for _, h := range m {
		h.LockAcquired(region, key, attempts, waited)
	}
}

func (m MultiHooks) LockFailed(region, key string, attempts int, waited time.Duration) {
	for _, h := range m {
		h.LockFailed(region, key, attempts, waited)
	}
}

func (m MultiHooks) UnlockFailed(region, key string, held bool) {
	for _, h := range m {
		h.UnlockFailed(region, key, held)
	}
}
