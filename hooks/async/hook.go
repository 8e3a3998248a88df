// Package asynchook moves hook delivery off the cache's hot path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := regioncache.New[User](regioncache.Options[User]{
//	    Provider: provider,
//	    Codec:    codec.JSON[User]{},
//	    Hooks:    hooks,
//	})
//
// Events are dropped, not blocked on, when the queue is full or after Close.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/regioncache"
)

type Hooks struct {
	inner regioncache.Hooks
	q     chan func()
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ regioncache.Hooks = (*Hooks)(nil)

func New(inner regioncache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close delivers what is queued and stops the workers.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Lookup(r string, hit bool)            { h.try(func() { h.inner.Lookup(r, hit) }) }
func (h *Hooks) GenerationRestored(r string, g int64) { h.try(func() { h.inner.GenerationRestored(r, g) }) }
func (h *Hooks) SelfHeal(r, k, why string)            { h.try(func() { h.inner.SelfHeal(r, k, why) }) }
func (h *Hooks) ExpirationSlid(r, k string)           { h.try(func() { h.inner.ExpirationSlid(r, k) }) }
func (h *Hooks) UnlockFailed(r, k string, held bool)  { h.try(func() { h.inner.UnlockFailed(r, k, held) }) }
func (h *Hooks) GenerationAdvanced(r string, from, to int64, cause string) {
	h.try(func() { h.inner.GenerationAdvanced(r, from, to, cause) })
}
func (h *Hooks) GenerationConflict(r string, m regioncache.Method, attempt int) {
	h.try(func() { h.inner.GenerationConflict(r, m, attempt) })
}
func (h *Hooks) ErrorSuppressed(r string, m regioncache.Method, err error) {
	h.try(func() { h.inner.ErrorSuppressed(r, m, err) })
}
func (h *Hooks) LockAcquired(r, k string, n int, waited time.Duration) {
	h.try(func() { h.inner.LockAcquired(r, k, n, waited) })
}
func (h *Hooks) LockFailed(r, k string, n int, waited time.Duration) {
	h.try(func() { h.inner.LockFailed(r, k, n, waited) })
}
