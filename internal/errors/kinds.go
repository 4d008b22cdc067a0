package errors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNetworkUnavailable is returned before any remote call when the
	// client has no connectivity. It is never retried internally.
	ErrNetworkUnavailable = New("network unavailable")

	// ErrCacheMiss is returned by cache lookups that found no index entry
	// or no materialized blob.
	ErrCacheMiss = New("cache miss")

	// ErrCorruptPayload marks a remote payload that could not be decoded.
	ErrCorruptPayload = New("corrupt payload")
)

// RemoteError is returned when a remote call failed or returned data the
// client cannot use. Caches are left untouched when it is returned.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Remote wraps err as a RemoteError for op. Connectivity errors are passed
// through unchanged so callers can still test for ErrNetworkUnavailable.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if Is(err, ErrNetworkUnavailable) {
		return err
	}
	var re *RemoteError
	if As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// IsRemote returns true if err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return As(err, &re)
}

// StorageFault reports that a local directory or file could not be
// created. It is fatal for the call that produced it.
type StorageFault struct {
	Path string
	Err  error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("storage fault at %s: %v", e.Path, e.Err)
}

func (e *StorageFault) Unwrap() error { return e.Err }

// Fatal is always true for a storage fault.
func (e *StorageFault) Fatal() bool { return true }

// Storage returns a StorageFault for path.
func Storage(path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageFault{Path: path, Err: err}
}

// CorruptCacheError is returned when a locally cached payload exists but
// cannot be parsed. It matches ErrCacheMiss so callers re-fetch.
type CorruptCacheError struct {
	Name string
	Err  error
}

func (e *CorruptCacheError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Name, e.Err)
}

func (e *CorruptCacheError) Unwrap() error { return e.Err }

func (e *CorruptCacheError) Is(target error) bool { return target == ErrCacheMiss }

// CorruptCache returns a CorruptCacheError for the named cache entry.
func CorruptCache(name string, err error) error {
	return &CorruptCacheError{Name: name, Err: err}
}

// LogCacheWriteFailure records a failed best-effort cache write. The
// operation that triggered the write still succeeds.
func LogCacheWriteFailure(what string, err error) {
	if err == nil {
		return
	}
	log.WithError(err).Warnf("could not write %s to the cache", what)
}
