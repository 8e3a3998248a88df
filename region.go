package regioncache

import (
	"context"
	"errors"
	"reflect"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/regioncache/codec"
	"github.com/unkn0wn-root/regioncache/genstore"
	"github.com/unkn0wn-root/regioncache/internal/wire"
	"github.com/unkn0wn-root/regioncache/keyspace"
	pr "github.com/unkn0wn-root/regioncache/provider"
	"github.com/unkn0wn-root/regioncache/retry"
)

type region[V any] struct {
	name string
	cfg  RegionConfig
	ns   *keyspace.Namespace

	p     pr.Provider
	gens  *genstore.Counter
	codec c.Codec[V]
	log   Logger
	hooks Hooks

	onError        ErrorHandler
	onLockFailed   LockFailedHandler
	onUnlockFailed UnlockFailedHandler
	tokens         TokenFactory
	lockRetry      retry.Strategy
	genRetry       retry.Strategy

	locks   *lockRegistry
	syncs   singleflight.Group
	enabled bool
}

func newRegion[V any](owner *cache[V], rc RegionConfig, p pr.Provider) *region[V] {
	o := owner.opts
	return &region[V]{
		name:           rc.Name,
		cfg:            rc,
		ns:             keyspace.New(o.KeyPrefix, rc.Name),
		p:              p,
		gens:           genstore.New(p, 0),
		codec:          o.Codec,
		log:            regionLogger{region: rc.Name, next: o.Logger},
		hooks:          o.Hooks,
		onError:        o.OnError,
		onLockFailed:   o.OnLockFailed,
		onUnlockFailed: o.OnUnlockFailed,
		tokens:         o.TokenFactory,
		lockRetry:      o.LockRetry,
		genRetry:       o.GenerationRetry,
		locks:          newLockRegistry(o.LockRegistrySize, rc.LockTimeout),
		enabled:        owner.enabled,
	}
}

func (r *region[V]) Name() string                   { return r.name }
func (r *region[V]) Config() RegionConfig           { return r.cfg }
func (r *region[V]) Namespace() *keyspace.Namespace { return r.ns }

func (r *region[V]) Put(ctx context.Context, key string, value V) error {
	if key == "" {
		return ErrInvalidKey
	}
	if isNil(value) {
		return ErrNilValue
	}
	if !r.enabled {
		return nil
	}
	payload, err := r.codec.Encode(value)
	if err != nil {
		return r.fail(MethodPut, key, err)
	}
	active := r.ns.ActiveKeysKey()
	_, _, err = r.guarded(ctx, MethodPut, key, func(gen int64) ([]pr.Op, error) {
		frame, err := wire.Encode(gen, payload)
		if err != nil {
			return nil, err
		}
		dk := r.ns.KeyAt(gen, key)
		return []pr.Op{
			pr.SetOp(dk, frame, r.cfg.Expiration),
			pr.AddMemberOp(active, dk),
			pr.ExpireOp(active, r.cfg.Expiration),
		}, nil
	})
	if err != nil {
		return r.fail(MethodPut, key, err)
	}
	return nil
}

func (r *region[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if key == "" {
		return zero, false, ErrInvalidKey
	}
	if !r.enabled {
		return zero, false, nil
	}
	gen, res, err := r.guarded(ctx, MethodGet, key, func(gen int64) ([]pr.Op, error) {
		return []pr.Op{pr.GetOp(r.ns.KeyAt(gen, key))}, nil
	})
	if err != nil {
		return zero, false, r.fail(MethodGet, key, err)
	}
	dk := r.ns.KeyAt(gen, key)
	if !res[0].Found {
		// expired entries leave their name behind in the active set
		if _, _, err := r.p.Exec(ctx, pr.Guard{}, pr.RemoveMemberOp(r.ns.ActiveKeysKey(), dk)); err != nil {
			r.log.Debug("prune of expired key failed", Fields{"key": key, "err": err})
		}
		r.hooks.Lookup(r.name, false)
		return zero, false, nil
	}

	fgen, payload, err := wire.Decode(res[0].Value)
	if err != nil {
		r.heal(ctx, dk, "corrupt")
		return zero, false, nil
	}
	if fgen != gen {
		r.heal(ctx, dk, "gen_mismatch")
		return zero, false, nil
	}
	v, err := r.codec.Decode(payload)
	if err != nil {
		r.heal(ctx, dk, "value_decode")
		return zero, false, nil
	}

	if r.cfg.SlidingExpiration > 0 {
		slid, err := r.p.Touch(ctx, dk, r.cfg.Expiration, r.cfg.SlidingExpiration)
		if err != nil {
			if herr := r.fail(MethodGet, key, err); herr != nil {
				return zero, false, herr
			}
		} else if slid {
			r.hooks.ExpirationSlid(r.name, key)
		}
	}
	r.hooks.Lookup(r.name, true)
	return v, true, nil
}

func (r *region[V]) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !r.enabled {
		return nil
	}
	active := r.ns.ActiveKeysKey()
	_, _, err := r.guarded(ctx, MethodRemove, key, func(gen int64) ([]pr.Op, error) {
		dk := r.ns.KeyAt(gen, key)
		return []pr.Op{pr.DelOp(dk), pr.RemoveMemberOp(active, dk)}, nil
	})
	if err != nil {
		return r.fail(MethodRemove, key, err)
	}
	return nil
}

// Clear moves the region to a new generation. Entries of the old generation
// become unreachable and age out through their TTL.
func (r *region[V]) Clear(ctx context.Context) error {
	if !r.enabled {
		return nil
	}
	// a lost generation key must be restored first, or INCR would start over at 1
	from, err := r.sync(ctx)
	if err != nil {
		return r.fail(MethodClear, "", err)
	}
	gen, err := r.gens.Bump(ctx, r.ns.GenerationKey(), r.ns.ActiveKeysKey())
	if err != nil {
		return r.fail(MethodClear, "", err)
	}
	if r.ns.SetHigherGeneration(gen) {
		r.hooks.GenerationAdvanced(r.name, from, gen, "clear")
	}
	r.log.Debug("region cleared", Fields{"from": from, "to": gen})
	return nil
}

// guarded runs the ops built for the current generation under a guard on the
// generation key. A failed guard means another process moved the generation
// (or the store lost it): resync and rebuild until genRetry gives up.
func (r *region[V]) guarded(ctx context.Context, m Method, key string, build func(gen int64) ([]pr.Op, error)) (int64, []pr.Result, error) {
	gen := r.ns.Generation()
	if gen == keyspace.Unknown {
		var err error
		if gen, err = r.sync(ctx); err != nil {
			return 0, nil, err
		}
	}
	next := r.genRetry.Begin()
	for attempt := 1; ; attempt++ {
		ops, err := build(gen)
		if err != nil {
			return 0, nil, err
		}
		res, ok, err := r.p.Exec(ctx, pr.Guard{Key: r.ns.GenerationKey(), Value: genstore.Format(gen)}, ops...)
		if err != nil {
			return 0, nil, err
		}
		if ok {
			return gen, res, nil
		}
		r.hooks.GenerationConflict(r.name, m, attempt)
		if !next(ctx, retry.Args{Region: r.name, Key: key, Attempt: attempt}) {
			if err := ctx.Err(); err != nil {
				return 0, nil, err
			}
			return 0, nil, &GenerationSyncError{Region: r.name, Attempts: attempt}
		}
		if gen, err = r.sync(ctx); err != nil {
			return 0, nil, err
		}
	}
}

// sync reconciles the local generation with the store. Concurrent callers in
// the same region share one round trip.
func (r *region[V]) sync(ctx context.Context) (int64, error) {
	v, err, _ := r.syncs.Do("sync", func() (any, error) {
		local := r.ns.Generation()
		gen, restored, err := r.gens.Sync(ctx, r.ns.GenerationKey(), local)
		if err != nil {
			return int64(0), err
		}
		if restored {
			r.log.Warn("generation restored in store", Fields{"generation": gen})
			r.hooks.GenerationRestored(r.name, gen)
		}
		if r.ns.SetHigherGeneration(gen) {
			r.log.Debug("generation advanced", Fields{"from": local, "to": gen})
			r.hooks.GenerationAdvanced(r.name, local, gen, "sync")
		}
		return r.ns.Generation(), nil
	})
	if err != nil {
		if errors.Is(err, genstore.ErrContention) {
			return 0, &GenerationSyncError{Region: r.name, Err: err}
		}
		return 0, err
	}
	return v.(int64), nil
}

// heal drops an entry that cannot be served.
func (r *region[V]) heal(ctx context.Context, storageKey, reason string) {
	r.hooks.SelfHeal(r.name, storageKey, reason)
	r.hooks.Lookup(r.name, false)
	_, _, err := r.p.Exec(ctx, pr.Guard{}, pr.DelOp(storageKey), pr.RemoveMemberOp(r.ns.ActiveKeysKey(), storageKey))
	if err != nil {
		r.log.Debug("self-heal delete failed", Fields{"storageKey": storageKey, "reason": reason, "err": err})
		return
	}
	r.log.Debug("entry dropped on read", Fields{"storageKey": storageKey, "reason": reason})
}

// fail routes err through the error handler.
func (r *region[V]) fail(m Method, key string, err error) error {
	oe := &OpError{Region: r.name, Method: m, Key: key, Err: err}
	if herr := r.onError(oe); herr != nil {
		return herr
	}
	r.hooks.ErrorSuppressed(r.name, m, err)
	r.log.Debug("error suppressed", Fields{"method": m.String(), "key": key, "err": err})
	return nil
}

func isNil[V any](v V) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
