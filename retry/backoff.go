package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff adapts a cenkalti/backoff policy. New is called once per sequence;
// the sequence stops when the policy returns backoff.Stop, when MaxAttempts
// retries were spent, or when the elapsed time reaches the timeout
// (Args.AcquireTimeout, or Timeout). Like FullJitter it never sleeps past
// the timeout.
type Backoff struct {
	New         func() backoff.BackOff
	Timeout     time.Duration
	MaxAttempts int
}

// Exponential returns a Backoff over backoff.ExponentialBackOff with the
// given bounds.
func Exponential(initial, maxInterval time.Duration, maxAttempts int) Backoff {
	return Backoff{
		New: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxInterval
			return b
		},
		MaxAttempts: maxAttempts,
	}
}

func (s Backoff) Begin() Decision {
	var b backoff.BackOff
	if s.New != nil {
		b = s.New()
	} else {
		b = backoff.NewExponentialBackOff()
	}
	b.Reset()
	start := time.Now()
	return func(ctx context.Context, a Args) bool {
		if ctx.Err() != nil {
			return false
		}
		if s.MaxAttempts > 0 && a.Attempt >= s.MaxAttempts {
			return false
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return false
		}
		d, ok := clamp(d, deadline(a, s.Timeout), start)
		if !ok {
			return false
		}
		return sleep(ctx, d)
	}
}
