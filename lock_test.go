package regioncache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/regioncache/retry"
)

func TestLockUnlock(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	cc := newTestCache(t, p, nil)
	r := mustRegion(t, cc, "users")

	if err := r.Lock(ctx, "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	lockKey := r.Namespace().LockKey("k")
	tok, err := mr.Get(lockKey)
	if err != nil {
		t.Fatalf("lock key missing: %v", err)
	}
	if len(tok) <= len("lock-") || tok[:5] != "lock-" {
		t.Fatalf("unexpected token %q", tok)
	}
	if got := mr.TTL(lockKey); got != DefaultLockTimeout {
		t.Fatalf("lock TTL = %s, want %s", got, DefaultLockTimeout)
	}
	if err := r.Unlock(ctx, "k"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if mr.Exists(lockKey) {
		t.Fatalf("lock key left behind")
	}
}

func TestLockIsExclusive(t *testing.T) {
	for _, shared := range []bool{true, false} {
		name := "separate caches"
		if shared {
			name = "one cache"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mr, p := newStore(t)
			one := newTestCache(t, p, nil)

			var inside, maxInside atomic.Int32
			var wg sync.WaitGroup
			errs := make(chan error, 5)
			for i := 0; i < 5; i++ {
				cc := one
				if !shared {
					cc = newTestCache(t, connect(t, mr), nil)
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := cc.Lock(ctx, "users", "hot"); err != nil {
						errs <- err
						return
					}
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					inside.Add(-1)
					errs <- cc.Unlock(ctx, "users", "hot")
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("lock round: %v", err)
				}
			}
			if m := maxInside.Load(); m != 1 {
				t.Fatalf("%d holders at once", m)
			}
		})
	}
}

func TestLockTimesOut(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	holder := newTestCache(t, p, nil)
	if err := holder.Lock(ctx, "users", "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	// backoff steps far longer than the timeout must be cut to the time left
	waiter := newTestCache(t, connect(t, mr), func(o *Options[user]) {
		o.Regions = []RegionConfig{{Name: "users", AcquireLockTimeout: 50 * time.Millisecond}}
		o.LockRetry = retry.FullJitter{Base: 400 * time.Millisecond, Cap: 400 * time.Millisecond}
	})
	start := time.Now()
	err := waiter.Lock(ctx, "users", "k")
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Lock error = %v, want ErrLockTimeout", err)
	}
	if waited := time.Since(start); waited < 50*time.Millisecond || waited > 250*time.Millisecond {
		t.Fatalf("waited %s for a 50ms acquire timeout", waited)
	}
	var lte *LockTimeoutError
	if !errors.As(err, &lte) || lte.Attempts < 2 || lte.Timeout != 50*time.Millisecond {
		t.Fatalf("LockTimeoutError = %+v", lte)
	}

	// once released, the waiter gets it
	if err := holder.Unlock(ctx, "users", "k"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := waiter.Lock(ctx, "users", "k"); err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
}

func TestLockFailedHandler(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	holder := newTestCache(t, p, nil)
	if err := holder.Lock(ctx, "users", "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	var got LockFailure
	waiter := newTestCache(t, connect(t, mr), func(o *Options[user]) {
		o.LockRetry = retry.Never()
		o.OnLockFailed = func(f LockFailure) error {
			got = f
			return nil
		}
	})
	if err := waiter.Lock(ctx, "users", "k"); err != nil {
		t.Fatalf("handler swallowed the failure, got %v", err)
	}
	if got.Attempts != 1 || got.Key != "k" || got.Region != "users" || got.LockKey == "" {
		t.Fatalf("LockFailure = %+v", got)
	}
}

func TestLockRetryArgs(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	holder := newTestCache(t, p, nil)
	if err := holder.Lock(ctx, "users", "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	var seen []retry.Args
	strategy := retry.Func(func() retry.Decision {
		return func(_ context.Context, a retry.Args) bool {
			seen = append(seen, a)
			return a.Attempt < 3
		}
	})
	waiter := newTestCache(t, connect(t, mr), func(o *Options[user]) {
		o.LockRetry = strategy
		o.Regions = []RegionConfig{{Name: "users", LockTimeout: time.Minute, AcquireLockTimeout: time.Second}}
	})
	if err := waiter.Lock(ctx, "users", "k"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Lock error = %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("strategy consulted %d times, want 3", len(seen))
	}
	for i, a := range seen {
		if a.Attempt != i+1 || a.Region != "users" || a.Key != "k" ||
			a.LockTimeout != time.Minute || a.AcquireTimeout != time.Second || a.LockKey == "" {
			t.Fatalf("args[%d] = %+v", i, a)
		}
		if i > 0 && a.LockValue == seen[i-1].LockValue {
			t.Fatalf("token reused across attempts: %q", a.LockValue)
		}
	}
}

func TestUnlockNeverHeld(t *testing.T) {
	ctx := context.Background()
	_, p := newStore(t)
	hooks := &recordingHooks{}
	var got *UnlockFailure
	cc := newTestCache(t, p, func(o *Options[user]) {
		o.Hooks = hooks
		o.OnUnlockFailed = func(f UnlockFailure) error {
			got = &f
			return nil
		}
	})

	if err := cc.Unlock(ctx, "users", "k"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if got == nil || got.Held() || got.LockKey != "" || got.Token != "" {
		t.Fatalf("UnlockFailure = %+v", got)
	}
	if len(hooks.unlocks) != 1 || hooks.unlocks[0] {
		t.Fatalf("unlock hooks = %v", hooks.unlocks)
	}

	// default handler stays quiet
	quiet := newTestCache(t, p, nil)
	if err := quiet.Unlock(ctx, "users", "k"); err != nil {
		t.Fatalf("default Unlock: %v", err)
	}
}

func TestUnlockLostLock(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	var got UnlockFailure
	cc := newTestCache(t, p, func(o *Options[user]) {
		o.OnUnlockFailed = func(f UnlockFailure) error {
			got = f
			return errors.New("lost")
		}
	})
	r := mustRegion(t, cc, "users")
	if err := r.Lock(ctx, "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	lockKey := r.Namespace().LockKey("k")
	// the lock expired and somebody else took it
	if err := mr.Set(lockKey, "lock-other"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := r.Unlock(ctx, "k"); err == nil || err.Error() != "lost" {
		t.Fatalf("Unlock error = %v, want handler's", err)
	}
	if !got.Held() || got.LockKey != lockKey || got.Token == "" || got.Token == "lock-other" {
		t.Fatalf("UnlockFailure = %+v", got)
	}
	if s, _ := mr.Get(lockKey); s != "lock-other" {
		t.Fatalf("foreign lock was released: %q", s)
	}
}

func TestUnlockAfterLockKeyDeleted(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	var calls []UnlockFailure
	cc := newTestCache(t, p, func(o *Options[user]) {
		o.OnUnlockFailed = func(f UnlockFailure) error {
			calls = append(calls, f)
			return DefaultUnlockFailedHandler(f)
		}
	})
	r := mustRegion(t, cc, "users")
	if err := r.Lock(ctx, "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	lockKey := r.Namespace().LockKey("k")
	mr.Del(lockKey)

	if err := r.Unlock(ctx, "k"); err != nil {
		t.Fatalf("Unlock after lock loss: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("OnUnlockFailed called %d times, want 1", len(calls))
	}
	if f := calls[0]; !f.Held() || f.LockKey != lockKey || f.Token == "" {
		t.Fatalf("UnlockFailure = %+v", f)
	}
}

func TestLockRecordExpiresWithLock(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	var got []UnlockFailure
	cc := newTestCache(t, p, func(o *Options[user]) {
		o.Regions = []RegionConfig{{Name: "users", LockTimeout: 100 * time.Millisecond}}
		o.OnUnlockFailed = func(f UnlockFailure) error {
			got = append(got, f)
			return nil
		}
	})
	if err := cc.Lock(ctx, "users", "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	mr.FastForward(150 * time.Millisecond)

	if err := cc.Unlock(ctx, "users", "k"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if len(got) != 1 || got[0].Held() {
		t.Fatalf("UnlockFailure = %+v, want one never-held report", got)
	}
}

func TestLockFollowsGeneration(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	a := newTestCache(t, p, nil)
	b := newTestCache(t, connect(t, mr), nil)

	if err := a.Put(ctx, "users", "k", user{ID: "k"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Clear(ctx, "users"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	// a still believes in generation 1 but must lock under generation 2
	ra := mustRegion(t, a, "users")
	if err := ra.Lock(ctx, "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	rb := mustRegion(t, b, "users")
	if ra.Namespace().LockKey("k") != rb.Namespace().LockKey("k") {
		t.Fatalf("processes disagree on the lock key: %q vs %q", ra.Namespace().LockKey("k"), rb.Namespace().LockKey("k"))
	}
	if !mr.Exists(rb.Namespace().LockKey("k")) {
		t.Fatalf("lock not under the current generation")
	}
	if err := ra.Unlock(ctx, "k"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestNanoIDTokens(t *testing.T) {
	ctx := context.Background()
	mr, p := newStore(t)
	cc := newTestCache(t, p, func(o *Options[user]) { o.TokenFactory = NanoIDTokens })
	r := mustRegion(t, cc, "users")
	if err := r.Lock(ctx, "k"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	tok, _ := mr.Get(r.Namespace().LockKey("k"))
	if len(tok) != len("lock-")+21 {
		t.Fatalf("token %q is not a nanoid", tok)
	}
	if NanoIDTokens() == NanoIDTokens() || UUIDTokens() == UUIDTokens() {
		t.Fatalf("tokens repeat")
	}
}

func TestLockRegistryBounded(t *testing.T) {
	reg := newLockRegistry(2, time.Minute)
	for _, k := range []string{"a", "b", "c"} {
		reg.put(LockRecord{Key: k, LockKey: k + ":lock", Token: "t-" + k})
	}
	if n := reg.len(); n != 2 {
		t.Fatalf("len = %d, want 2", n)
	}
	if _, ok := reg.take("a"); ok {
		t.Fatalf("oldest record should have been evicted")
	}
	rec, ok := reg.take("c")
	if !ok || rec.Token != "t-c" {
		t.Fatalf("take(c) = %+v, %v", rec, ok)
	}
	if _, ok := reg.take("c"); ok {
		t.Fatalf("take must remove the record")
	}
}
