package store

import (
	"errors"
	"fmt"
)

// Validation errors, rejected before any store interaction.
var (
	ErrEmptyKey      = errors.New("cache key cannot be empty")
	ErrNilValue      = errors.New("cache value cannot be nil (null caching disabled)")
	ErrInvalidTTL    = errors.New("ttl must be positive")
	ErrInvalidPolicy = errors.New("ttl policy must be ABSOLUTE or SLIDING")
	ErrEmptyPattern  = errors.New("pattern cannot be empty")
)

// Error is the typed failure returned by Store operations. It carries the
// operation name and, when applicable, the key involved so callers can
// diagnose failures without a stack trace.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("sqlcache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sqlcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opErr(op, key string, err error) *Error {
	return &Error{Op: op, Key: key, Err: err}
}
