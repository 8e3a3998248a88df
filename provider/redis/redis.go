package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/regioncache/provider"
)

var (
	ErrNilClient = errors.New("redis provider: nil client")

	errGuard = errors.New("redis provider: guard mismatch")
)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool

	scripts sync.Map // source -> *goredis.Script
}

var (
	_ pr.Provider = (*Redis)(nil)
	_ pr.Scripter = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// Client exposes the underlying client for callers that need raw commands.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap(err)
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return wrap(p.rdb.Set(ctx, key, value, expiry(ttl)).Err())
}

func (p *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return wrap(p.rdb.Del(ctx, keys...).Err())
}

func (p *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := p.rdb.Incr(ctx, key).Result()
	return n, wrap(err)
}

func (p *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := p.rdb.SetNX(ctx, key, value, expiry(ttl)).Result()
	return ok, wrap(err)
}

func (p *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := p.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, wrap(err)
	}
	switch {
	case d == -2:
		return 0, false, nil
	case d < 0:
		return 0, true, nil // persistent
	}
	return d, true, nil
}

// Exec runs ops in MULTI/EXEC. A guarded call WATCHes guard.Key, compares
// its value and only then queues the transaction, so a concurrent write to
// the guard key between the check and EXEC aborts the commit.
func (p *Redis) Exec(ctx context.Context, guard pr.Guard, ops ...pr.Op) ([]pr.Result, bool, error) {
	if err := validate(ops); err != nil {
		return nil, false, err
	}
	if guard.IsZero() {
		var cmds []goredis.Cmder
		_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			cmds = queue(ctx, pipe, ops)
			return nil
		})
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, false, wrap(err)
		}
		return results(ops, cmds), true, nil
	}

	var cmds []goredis.Cmder
	err := p.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, guard.Key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return errGuard
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, guard.Value) {
			return errGuard
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			cmds = queue(ctx, pipe, ops)
			return nil
		})
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		return nil
	}, guard.Key)
	switch {
	case errors.Is(err, errGuard), errors.Is(err, goredis.TxFailedErr):
		return nil, false, nil
	case err != nil:
		return nil, false, wrap(err)
	}
	return results(ops, cmds), true, nil
}

func (p *Redis) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := compareAndDelete.Run(ctx, p.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, wrap(err)
	}
	return n > 0, nil
}

func (p *Redis) Touch(ctx context.Context, key string, expiration, threshold time.Duration) (bool, error) {
	n, err := touch.Run(ctx, p.rdb, []string{key}, expiration.Milliseconds(), threshold.Milliseconds()).Int64()
	if err != nil {
		return false, wrap(err)
	}
	return n == 1, nil
}

// Eval runs a Lua script through EVALSHA with an EVAL fallback. Scripts are
// hashed once per source.
func (p *Redis) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	s, ok := p.scripts.Load(script)
	if !ok {
		s, _ = p.scripts.LoadOrStore(script, goredis.NewScript(script))
	}
	v, err := s.(*goredis.Script).Run(ctx, p.rdb, keys, args...).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return v, wrap(err)
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func validate(ops []pr.Op) error {
	for _, op := range ops {
		switch op.Kind {
		case pr.OpGet, pr.OpSet, pr.OpDel, pr.OpIncr, pr.OpAddMember, pr.OpRemoveMember, pr.OpExpire:
		default:
			return fmt.Errorf("redis provider: unsupported op %d", op.Kind)
		}
	}
	return nil
}

func queue(ctx context.Context, pipe goredis.Pipeliner, ops []pr.Op) []goredis.Cmder {
	cmds := make([]goredis.Cmder, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case pr.OpGet:
			cmds[i] = pipe.Get(ctx, op.Key)
		case pr.OpSet:
			cmds[i] = pipe.Set(ctx, op.Key, op.Value, expiry(op.TTL))
		case pr.OpDel:
			cmds[i] = pipe.Del(ctx, op.Key)
		case pr.OpIncr:
			cmds[i] = pipe.Incr(ctx, op.Key)
		case pr.OpAddMember:
			cmds[i] = pipe.SAdd(ctx, op.Key, op.Member)
		case pr.OpRemoveMember:
			cmds[i] = pipe.SRem(ctx, op.Key, op.Member)
		case pr.OpExpire:
			cmds[i] = pipe.PExpire(ctx, op.Key, op.TTL)
		}
	}
	return cmds
}

func results(ops []pr.Op, cmds []goredis.Cmder) []pr.Result {
	out := make([]pr.Result, len(ops))
	for i := range ops {
		if i >= len(cmds) || cmds[i] == nil {
			continue
		}
		switch c := cmds[i].(type) {
		case *goredis.StringCmd:
			if b, err := c.Bytes(); err == nil {
				out[i] = pr.Result{Value: b, Found: true}
			}
		case *goredis.IntCmd:
			out[i] = pr.Result{Int: c.Val()}
		case *goredis.BoolCmd:
			if c.Val() {
				out[i] = pr.Result{Int: 1}
			}
		}
	}
	return out
}

// wrap marks connection-level failures with pr.ErrUnavailable. Server replies
// (WRONGTYPE, script errors) and context cancellation pass through untouched.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if isTransport(err) {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	return err
}

func isTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, goredis.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
