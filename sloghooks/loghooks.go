// Package sloghooks reports regioncache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/regioncache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	ConflictEvery uint64
	// LogHits also logs every Lookup at debug level.
	LogHits bool
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	conflictCtr atomic.Uint64
}

var _ regioncache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Lookup(region string, hit bool) {
	if h.l == nil || !h.opts.LogHits {
		return
	}
	h.l.Debug("regioncache.lookup", "region", region, "hit", hit)
}

func (h *Hooks) GenerationAdvanced(region string, from, to int64, cause string) {
	if h.l == nil {
		return
	}
	h.l.Info("regioncache.generation_advanced",
		"region", region,
		"from", from,
		"to", to,
		"cause", cause)
}

func (h *Hooks) GenerationRestored(region string, gen int64) {
	if h.l == nil {
		return
	}
	h.l.Warn("regioncache.generation_restored",
		"region", region,
		"generation", gen)
}

func (h *Hooks) GenerationConflict(region string, method regioncache.Method, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("regioncache.generation_conflict",
		"region", region,
		"method", method.String(),
		"attempt", attempt)
}

func (h *Hooks) SelfHeal(region, storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("regioncache.self_heal",
		"region", region,
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ExpirationSlid(region, key string) {
	if h.l == nil || !h.opts.LogHits {
		return
	}
	h.l.Debug("regioncache.expiration_slid", "region", region, "key", h.redact(key))
}

func (h *Hooks) ErrorSuppressed(region string, method regioncache.Method, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("regioncache.error_suppressed",
		"region", region,
		"method", method.String(),
		"err", err)
}

func (h *Hooks) LockAcquired(region, key string, attempts int, waited time.Duration) {
	if h.l == nil || attempts <= 1 {
		return
	}
	h.l.Debug("regioncache.lock_contended",
		"region", region,
		"key", h.redact(key),
		"attempts", attempts,
		"waited", waited)
}

func (h *Hooks) LockFailed(region, key string, attempts int, waited time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("regioncache.lock_failed",
		"region", region,
		"key", h.redact(key),
		"attempts", attempts,
		"waited", waited)
}

func (h *Hooks) UnlockFailed(region, key string, held bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("regioncache.unlock_failed",
		"region", region,
		"key", h.redact(key),
		"held", held)
}
