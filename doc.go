// Package regioncache is a second-level cache for ORM-style callers, kept in
// a shared store (Redis) and partitioned into named regions.
//
// Every region owns a generation counter in the store. Entry keys embed the
// generation, so Clear is a single INCR: entries of the old generation turn
// unreachable and expire on their own TTL. Each Put, Get and Remove is guarded
// by the generation the process believes in; when another process has moved
// it on, the operation resyncs and retries.
//
// Keys:
//
//	{<prefix>:<region>}:generation        - region generation counter
//	{<prefix>:<region>}:keys              - data keys written under the current generation
//	{<prefix>:<region>}:v<gen>:<key>      - entries
//	{<prefix>:<region>}:v<gen>:<key>:lock - exclusive locks
//
// The braces are a cluster hash tag: a region lives in one slot.
//
// Components:
//   - provider.Provider: the store (provider/redis; provider/ristretto for a
//     single process), optionally wrapped by provider/breaker and provider/traced.
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - retry.Strategy: backoff between lock attempts and generation conflicts.
//
// Store failures go through Options.OnError. The default swallows transient
// ones, so an unreachable store degrades to cache misses.
package regioncache
