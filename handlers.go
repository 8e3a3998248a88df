package regioncache

import (
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Method names the cache operation an error or event belongs to.
type Method int

const (
	MethodUnknown Method = iota
	MethodPut
	MethodGet
	MethodRemove
	MethodClear
	MethodLock
	MethodUnlock
)

func (m Method) String() string {
	switch m {
	case MethodPut:
		return "put"
	case MethodGet:
		return "get"
	case MethodRemove:
		return "remove"
	case MethodClear:
		return "clear"
	case MethodLock:
		return "lock"
	case MethodUnlock:
		return "unlock"
	default:
		return "unknown"
	}
}

// ErrorHandler decides what the caller sees when an operation fails.
// Returning nil swallows the failure: Put/Remove/Clear/Unlock succeed
// silently, Get reports a miss, Lock returns without holding the lock.
// Any non-nil error is returned to the caller as is.
type ErrorHandler func(e *OpError) error

// DefaultErrorHandler swallows transient store failures and returns the rest.
func DefaultErrorHandler(e *OpError) error {
	if IsTransient(e.Err) {
		return nil
	}
	return e
}

// PropagateErrors returns every failure.
func PropagateErrors(e *OpError) error { return e }

// LockFailure describes a Lock that ran out of retries.
type LockFailure struct {
	Region   string
	Key      string
	LockKey  string
	Attempts int
	Waited   time.Duration
	Timeout  time.Duration
}

// LockFailedHandler's return value is what Lock returns.
type LockFailedHandler func(f LockFailure) error

func DefaultLockFailedHandler(f LockFailure) error {
	return &LockTimeoutError{
		Region:   f.Region,
		Key:      f.Key,
		LockKey:  f.LockKey,
		Attempts: f.Attempts,
		Waited:   f.Waited,
		Timeout:  f.Timeout,
	}
}

// UnlockFailure describes an Unlock that released nothing. LockKey and Token
// are empty when this process never held the lock; they are set when the
// lock was held but had expired or been taken over before Unlock.
type UnlockFailure struct {
	Region  string
	Key     string
	LockKey string
	Token   string
	HeldFor time.Duration
}

// Held reports whether the lock had been acquired by this process.
func (f UnlockFailure) Held() bool { return f.LockKey != "" }

// UnlockFailedHandler's return value is what Unlock returns.
type UnlockFailedHandler func(f UnlockFailure) error

func DefaultUnlockFailedHandler(UnlockFailure) error { return nil }

// TokenFactory returns a fresh lock token. Tokens must never repeat.
type TokenFactory func() string

// UUIDTokens is the default TokenFactory.
func UUIDTokens() string { return "lock-" + uuid.NewString() }

// NanoIDTokens yields shorter tokens from go-nanoid.
func NanoIDTokens() string {
	id, err := gonanoid.New()
	if err != nil {
		return UUIDTokens()
	}
	return "lock-" + id
}
