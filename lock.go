package regioncache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/unkn0wn-root/regioncache/retry"
)

// LockRecord is what this process remembers about a lock it holds.
type LockRecord struct {
	Key        string
	LockKey    string
	Token      string
	AcquiredAt time.Time
}

// lockRegistry maps cache keys to the locks held on them by this process.
// Records expire with the lock TTL; an Unlock after that finds nothing and
// reports the lock as never held.
type lockRegistry struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, LockRecord]
}

func newLockRegistry(size int, ttl time.Duration) *lockRegistry {
	return &lockRegistry{lru: expirable.NewLRU[string, LockRecord](size, nil, ttl)}
}

func (l *lockRegistry) put(rec LockRecord) {
	l.mu.Lock()
	l.lru.Add(rec.Key, rec)
	l.mu.Unlock()
}

// take removes and returns the record for key.
func (l *lockRegistry) take(key string) (LockRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.lru.Peek(key)
	if ok {
		l.lru.Remove(key)
	}
	return rec, ok
}

func (l *lockRegistry) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Len()
}

func (r *region[V]) Lock(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !r.enabled {
		return nil
	}
	// every process must derive the same lock key, so agree on the generation first
	if _, err := r.sync(ctx); err != nil {
		return r.fail(MethodLock, key, err)
	}
	lockKey := r.ns.LockKey(key)

	next := r.lockRetry.Begin()
	start := time.Now()
	for attempt := 1; ; attempt++ {
		token := r.tokens()
		ok, err := r.p.SetNX(ctx, lockKey, []byte(token), r.cfg.LockTimeout)
		if err != nil {
			return r.fail(MethodLock, key, err)
		}
		if ok {
			r.locks.put(LockRecord{Key: key, LockKey: lockKey, Token: token, AcquiredAt: time.Now()})
			waited := time.Since(start)
			r.hooks.LockAcquired(r.name, key, attempt, waited)
			r.log.Debug("lock acquired", Fields{"key": key, "attempts": attempt, "waited": waited})
			return nil
		}

		args := retry.Args{
			Region:         r.name,
			Key:            key,
			LockKey:        lockKey,
			LockValue:      token,
			LockTimeout:    r.cfg.LockTimeout,
			AcquireTimeout: r.cfg.AcquireLockTimeout,
			Attempt:        attempt,
			Elapsed:        time.Since(start),
		}
		if !next(ctx, args) {
			if err := ctx.Err(); err != nil {
				return r.fail(MethodLock, key, err)
			}
			waited := time.Since(start)
			r.hooks.LockFailed(r.name, key, attempt, waited)
			r.log.Warn("lock not acquired", Fields{"key": key, "attempts": attempt, "waited": waited})
			return r.onLockFailed(LockFailure{
				Region:   r.name,
				Key:      key,
				LockKey:  lockKey,
				Attempts: attempt,
				Waited:   waited,
				Timeout:  r.cfg.AcquireLockTimeout,
			})
		}
	}
}

func (r *region[V]) Unlock(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !r.enabled {
		return nil
	}
	rec, ok := r.locks.take(key)
	if !ok {
		r.hooks.UnlockFailed(r.name, key, false)
		r.log.Warn("unlock of a lock not held", Fields{"key": key})
		return r.onUnlockFailed(UnlockFailure{Region: r.name, Key: key})
	}
	released, err := r.p.CompareAndDelete(ctx, rec.LockKey, []byte(rec.Token))
	if err != nil {
		return r.fail(MethodUnlock, key, err)
	}
	if !released {
		held := time.Since(rec.AcquiredAt)
		r.hooks.UnlockFailed(r.name, key, true)
		r.log.Warn("lock expired or taken over before unlock", Fields{"key": key, "lockKey": rec.LockKey, "heldFor": held})
		return r.onUnlockFailed(UnlockFailure{
			Region:  r.name,
			Key:     key,
			LockKey: rec.LockKey,
			Token:   rec.Token,
			HeldFor: held,
		})
	}
	r.log.Debug("lock released", Fields{"key": key})
	return nil
}
