// Package retry decides whether a failed attempt should be retried.
//
// A Strategy is a policy object. Each retry sequence calls Begin once and
// gets a Decision closure that owns the sequence state (attempt count, start
// time). The closure sleeps before returning true, so callers loop:
//
//	next := strategy.Begin()
//	for attempt := 1; ; attempt++ {
//		if ok := try(); ok {
//			return nil
//		}
//		if !next(ctx, retry.Args{Attempt: attempt}) {
//			return giveUp()
//		}
//	}
//
// The same Strategy drives lock acquisition and generation-conflict retries.
package retry

import (
	"context"
	"time"
)

// Args describes the attempt that just failed.
type Args struct {
	Region string
	Key    string

	// Lock attempts only.
	LockKey        string
	LockValue      string
	LockTimeout    time.Duration
	AcquireTimeout time.Duration

	// Attempt is 1 for the first failed attempt.
	Attempt int
	// Elapsed since the first attempt of the sequence.
	Elapsed time.Duration
}

// Decision reports whether to retry. It may block; it must return false
// promptly once ctx is done.
type Decision func(ctx context.Context, a Args) bool

type Strategy interface {
	Begin() Decision
}

// Func adapts a function to Strategy.
type Func func() Decision

func (f Func) Begin() Decision { return f() }

// Never returns a Strategy that gives up on the first failure.
func Never() Strategy {
	return Func(func() Decision {
		return func(context.Context, Args) bool { return false }
	})
}

// deadline picks the sequence timeout: the caller's acquire timeout wins over
// the strategy's own. Zero means none.
func deadline(a Args, own time.Duration) time.Duration {
	if a.AcquireTimeout > 0 {
		return a.AcquireTimeout
	}
	return own
}

// clamp cuts d to what is left of timeout since start. ok is false once
// nothing is left.
func clamp(d, timeout time.Duration, start time.Time) (time.Duration, bool) {
	if timeout <= 0 {
		return d, true
	}
	left := timeout - time.Since(start)
	if left <= 0 {
		return 0, false
	}
	return min(d, left), true
}

// sleep waits d or until ctx is done. Reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
