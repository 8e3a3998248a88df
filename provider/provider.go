// Package provider defines the backing store abstraction used by regioncache.
//
// A Provider exposes exactly the primitives the region protocol needs:
// plain reads and writes with TTLs, set-if-absent, increment, a transaction
// guarded by a single key/value precondition, and two atomic compound
// operations (compare-and-delete for unlock, conditional TTL reset for
// sliding expiration).
//
// Values are opaque: Get must return exactly the bytes given to Set.
//
// The keyspace "{<prefix>:<region>}:" is owned by regioncache. External code
// MUST NOT write under it; foreign values are treated as corruption and
// deleted on read.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks transport and connectivity failures. Implementations
// wrap such errors with it so callers can classify them with errors.Is.
var ErrUnavailable = errors.New("provider: store unavailable")

// Provider must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys; absent keys are ignored.
	Del(ctx context.Context, keys ...string) error

	// Incr atomically increments an integer key, creating it at 0 first.
	Incr(ctx context.Context, key string) (int64, error)

	// SetNX stores value only if key is absent. Reports whether it stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// TTL returns the remaining time to live. ok is false when the key is
	// absent; a key without expiry reports (0, true, nil).
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)

	// Exec applies ops atomically. With a non-zero guard the ops are applied
	// only if guard.Key holds guard.Value at commit time; otherwise ok is false
	// and nothing is applied. Results are positional with ops.
	Exec(ctx context.Context, guard Guard, ops ...Op) (res []Result, ok bool, err error)

	// CompareAndDelete deletes key only if it currently holds value.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)

	// Touch resets the TTL of key to expiration when the remaining TTL is
	// below threshold. Reports whether the TTL was reset.
	Touch(ctx context.Context, key string, expiration, threshold time.Duration) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// ErrScriptsUnsupported is returned by Eval for stores that cannot run
// server-side scripts.
var ErrScriptsUnsupported = errors.New("provider: store does not run scripts")

// Scripter is implemented by stores that evaluate server-side scripts
// atomically (Redis Lua). Decorators implement it by forwarding to the store
// they wrap.
type Scripter interface {
	// Eval runs script with keys and args. A nil reply is (nil, nil).
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
}

// Eval runs script on p, or returns ErrScriptsUnsupported when p is not a
// Scripter.
func Eval(ctx context.Context, p Provider, script string, keys []string, args ...any) (any, error) {
	s, ok := p.(Scripter)
	if !ok {
		return nil, ErrScriptsUnsupported
	}
	return s.Eval(ctx, script, keys, args...)
}

// Guard is a transaction precondition. The zero Guard always holds.
type Guard struct {
	Key   string
	Value []byte
}

func (g Guard) IsZero() bool { return g.Key == "" }

type OpKind uint8

const (
	OpGet OpKind = iota + 1
	OpSet
	OpDel
	OpIncr
	OpAddMember
	OpRemoveMember
	OpExpire
)

func (k OpKind) String() string {
	switch k {
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpDel:
		return "del"
	case OpIncr:
		return "incr"
	case OpAddMember:
		return "sadd"
	case OpRemoveMember:
		return "srem"
	case OpExpire:
		return "expire"
	default:
		return "unknown"
	}
}

// Op is one queued transaction command. Build it with the helpers below.
type Op struct {
	Kind   OpKind
	Key    string
	Member string
	Value  []byte
	TTL    time.Duration
}

func GetOp(key string) Op  { return Op{Kind: OpGet, Key: key} }
func DelOp(key string) Op  { return Op{Kind: OpDel, Key: key} }
func IncrOp(key string) Op { return Op{Kind: OpIncr, Key: key} }

func SetOp(key string, value []byte, ttl time.Duration) Op {
	return Op{Kind: OpSet, Key: key, Value: value, TTL: ttl}
}

// AddMemberOp adds member to the set stored at set.
func AddMemberOp(set, member string) Op { return Op{Kind: OpAddMember, Key: set, Member: member} }

// RemoveMemberOp removes member from the set stored at set.
func RemoveMemberOp(set, member string) Op {
	return Op{Kind: OpRemoveMember, Key: set, Member: member}
}

// ExpireOp sets the TTL of key if it exists.
func ExpireOp(key string, ttl time.Duration) Op { return Op{Kind: OpExpire, Key: key, TTL: ttl} }

// Result of one Op. Get fills Value/Found; Incr fills Int; Del, AddMember
// and RemoveMember report the number of affected entries in Int.
type Result struct {
	Value []byte
	Found bool
	Int   int64
}
