package regioncache

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/regioncache/provider"
)

var (
	ErrInvalidConfig  = errors.New("regioncache: invalid configuration")
	ErrInvalidKey     = errors.New("regioncache: key must not be empty")
	ErrNilValue       = errors.New("regioncache: value must not be nil")
	ErrGenerationSync = errors.New("regioncache: generation out of sync")
	ErrLockTimeout    = errors.New("regioncache: lock acquisition timed out")
	ErrClosed         = errors.New("regioncache: cache closed")
)

// OpError wraps a failure inside one cache operation. Key is empty for Clear.
type OpError struct {
	Region string
	Method Method
	Key    string
	Err    error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("regioncache: %s region %q: %v", e.Method, e.Region, e.Err)
	}
	return fmt.Sprintf("regioncache: %s %q in region %q: %v", e.Method, e.Key, e.Region, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// GenerationSyncError means a guarded operation kept losing its generation
// precondition until the generation retry strategy gave up.
type GenerationSyncError struct {
	Region   string
	Attempts int
	Err      error // last sync error, if any
}

func (e *GenerationSyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("regioncache: region %q generation out of sync after %d attempts: %v", e.Region, e.Attempts, e.Err)
	}
	return fmt.Sprintf("regioncache: region %q generation out of sync after %d attempts", e.Region, e.Attempts)
}

func (e *GenerationSyncError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGenerationSync, e.Err}
	}
	return []error{ErrGenerationSync}
}

// LockTimeoutError is what the default LockFailedHandler returns.
type LockTimeoutError struct {
	Region   string
	Key      string
	LockKey  string
	Attempts int
	Waited   time.Duration
	Timeout  time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("regioncache: lock %q in region %q not acquired after %d attempts in %s (timeout %s)",
		e.Key, e.Region, e.Attempts, e.Waited.Round(time.Millisecond), e.Timeout)
}

func (e *LockTimeoutError) Unwrap() error { return ErrLockTimeout }

// IsTransient reports whether err is a connectivity failure of the store.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pr.ErrUnavailable) ||
		errors.Is(err, goredis.ErrClosed) ||
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
