package session

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies remote failures so callers can decide whether to retry.
type Kind int

const (
	// KindTransient is a generic remote API or network failure.
	KindTransient Kind = iota
	// KindAuth means the credentials were rejected.
	KindAuth
	// KindNotFound means the item does not exist in the account.
	KindNotFound
	// KindSync means pending mutations could not be flushed.
	KindSync
	// KindCanceled means the caller's context ended.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindSync:
		return "sync"
	case KindCanceled:
		return "canceled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether an operation failing with this kind may succeed
// when attempted again.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindSync
}

// Error is returned by every backend operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownNote  = errors.New("note not found")
)

// KindOf returns the kind of err. Errors that did not come from a backend are
// treated as transient.
func KindOf(err error) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsNotFound reports whether err means the item is missing.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsAuth reports whether err means the credentials were rejected.
func IsAuth(err error) bool {
	return err != nil && KindOf(err) == KindAuth
}
