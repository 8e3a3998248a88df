// Package genstore reads, repairs and advances region generation counters.
//
// A generation lives in the backing store as a decimal integer so it can be
// advanced with INCR. Processes cache it locally (see keyspace) and come here
// only when the store disagrees with them.
package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	pr "github.com/unkn0wn-root/regioncache/provider"
)

// ErrContention is returned when Sync keeps losing races against other
// writers of the generation key.
var ErrContention = errors.New("genstore: generation key contended")

const defaultAttempts = 5

// Counter is safe for concurrent use.
type Counter struct {
	p        pr.Provider
	attempts int
}

// New returns a counter over p. attempts bounds the Sync loop; 0 => 5.
func New(p pr.Provider, attempts int) *Counter {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Counter{p: p, attempts: attempts}
}

// Sync reconciles the server generation at key with the locally believed
// one and returns the generation to use:
//
//   - key absent: created at max(local, 1)
//   - server >= local: server wins
//   - server < local (store flushed or failed over): server is raised back
//     to local with a guarded write
//
// restored reports that the server was repaired from local state.
func (c *Counter) Sync(ctx context.Context, key string, local int64) (gen int64, restored bool, err error) {
	for i := 0; i < c.attempts; i++ {
		raw, ok, err := c.p.Get(ctx, key)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			want := max(local, 1)
			created, err := c.p.SetNX(ctx, key, Format(want), 0)
			if err != nil {
				return 0, false, err
			}
			if created {
				return want, local >= 1, nil
			}
			continue
		}
		server, err := Parse(raw)
		if err != nil {
			return 0, false, fmt.Errorf("genstore: %s: %w", key, err)
		}
		if server >= local {
			return server, false, nil
		}
		_, ok, err = c.p.Exec(ctx, pr.Guard{Key: key, Value: raw}, pr.SetOp(key, Format(local), 0))
		if err != nil {
			return 0, false, err
		}
		if ok {
			return local, true, nil
		}
	}
	return 0, false, ErrContention
}

// Bump increments the generation and deletes drop in the same transaction.
// It returns the new generation.
func (c *Counter) Bump(ctx context.Context, key string, drop ...string) (int64, error) {
	ops := make([]pr.Op, 0, 1+len(drop))
	ops = append(ops, pr.IncrOp(key))
	for _, k := range drop {
		ops = append(ops, pr.DelOp(k))
	}
	res, ok, err := c.p.Exec(ctx, pr.Guard{}, ops...)
	if err != nil {
		return 0, err
	}
	if !ok || len(res) == 0 {
		return 0, fmt.Errorf("genstore: bump of %s not committed", key)
	}
	return res[0].Int, nil
}

func Format(gen int64) []byte { return strconv.AppendInt(nil, gen, 10) }

func Parse(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid generation %q", b)
	}
	return n, nil
}
