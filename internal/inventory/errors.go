package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded reports a write larger than the storage budget.
	ErrCapacityExceeded = errors.New("storage capacity exceeded")
	// ErrCorruptPayload reports a persisted value that could not be decoded.
	ErrCorruptPayload = errors.New("corrupt payload")
	// ErrNoSession reports an operation that needs an open inventory session.
	ErrNoSession = errors.New("no active inventory session")
	// ErrCannotOperate reports that every offline catalog source is exhausted.
	ErrCannotOperate = errors.New("cannot operate: no catalog source available")
	// ErrIndexOutOfRange reports a journal index that no longer exists.
	ErrIndexOutOfRange = errors.New("journal index out of range")
)

// NetworkError wraps an unreachable authority or a timed-out call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a deadline.
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) {
		return t.Timeout()
	}
	return false
}

// ValidationError reports input that violates a mandatory rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// StorageError reports a local persistence failure for one key.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %q: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is or wraps a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is or wraps a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
