package search

import (
	"errors"
	"fmt"
)

var (
	// ErrInternal is wrapped by every CriticalError.
	ErrInternal = errors.New("timing search internal error")
	// ErrNoArrivals is returned when path queries run before FindArrivals.
	ErrNoArrivals = errors.New("arrivals not found")
	// ErrInvalidTag is returned when a tag string cannot be parsed.
	ErrInvalidTag = errors.New("invalid tag")
)

// CriticalError reports a broken invariant of the shared search caches.
// Analysis stops when one is returned; the caches cannot be trusted.
type CriticalError struct {
	Op  string
	Msg string
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, ErrInternal)
}

func (e *CriticalError) Unwrap() error { return ErrInternal }

func critical(op, format string, args ...interface{}) error {
	return &CriticalError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// recoverCritical turns a CriticalError panic into *err. Other panics are
// re-raised.
func recoverCritical(err *error) {
	r := recover()
	if r == nil {
		return
	}
	ce, ok := r.(*CriticalError)
	if !ok {
		panic(r)
	}
	*err = ce
}
