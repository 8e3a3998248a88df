package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	DefaultBase = 5 * time.Millisecond
	DefaultCap  = 500 * time.Millisecond
)

// FullJitter is exponential backoff with full jitter and a floor: attempt n
// sleeps a random duration in [Base, min(Cap, 2^n*Base)).
//
// A sequence gives up when the time since Begin reaches the timeout
// (Args.AcquireTimeout, or Timeout when that is zero) or once Args.Attempt
// reaches MaxAttempts. Zero Timeout and zero MaxAttempts means retry until
// ctx is done. A sleep never runs past the timeout: the last one is cut to
// the time left.
type FullJitter struct {
	Base        time.Duration // 0 => 5ms
	Cap         time.Duration // 0 => 500ms
	Timeout     time.Duration
	MaxAttempts int

	// OnBackoff, if set, is called before each sleep.
	OnBackoff func(a Args, delay time.Duration)
}

// Delay returns the sleep for attempt n (1-based). rand63n must return a
// value in [0, n).
func Delay(attempt int, base, ceil time.Duration, rand63n func(int64) int64) time.Duration {
	if base <= 0 {
		base = DefaultBase
	}
	if ceil < base {
		ceil = base
	}
	upper := ceil
	if attempt < 62 {
		if exp := base << uint(attempt); exp > 0 && exp < ceil {
			upper = exp
		}
	}
	if upper <= base {
		return base
	}
	return base + time.Duration(rand63n(int64(upper-base)))
}

func (s FullJitter) Begin() Decision {
	base := s.Base
	if base <= 0 {
		base = DefaultBase
	}
	ceil := s.Cap
	if ceil <= 0 {
		ceil = DefaultCap
	}
	start := time.Now()
	return func(ctx context.Context, a Args) bool {
		if ctx.Err() != nil {
			return false
		}
		if s.MaxAttempts > 0 && a.Attempt >= s.MaxAttempts {
			return false
		}
		d, ok := clamp(Delay(a.Attempt, base, ceil, rand.Int64N), deadline(a, s.Timeout), start)
		if !ok {
			return false
		}
		if s.OnBackoff != nil {
			a.Elapsed = time.Since(start)
			s.OnBackoff(a, d)
		}
		return sleep(ctx, d)
	}
}
