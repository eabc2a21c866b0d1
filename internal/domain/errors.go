package domain

import (
	"errors"
	"fmt"
)

// ErrNoData marks an empty result. Stores turn it into zero values; it
// never reaches a client.
var ErrNoData = errors.New("no metric data")

// ValidationError reports malformed or out-of-range input. Index is the
// zero-based batch position, or -1 when the whole payload is at fault.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Index >= 0 {
		return fmt.Sprintf("item %d: %s", e.Index, msg)
	}
	return msg
}

// ConnectionError means the store could not be reached.
type ConnectionError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("database unreachable (%s, %d attempts): %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("database unreachable (%s): %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PersistenceError is a read or write failure mid-operation. Index is the
// failing batch position or -1.
type PersistenceError struct {
	Op    string
	Index int
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s failed at item %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ItemIndex extracts the batch index carried by a validation or
// persistence error.
func ItemIndex(err error) (int, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Index >= 0 {
		return verr.Index, true
	}
	var perr *PersistenceError
	if errors.As(err, &perr) && perr.Index >= 0 {
		return perr.Index, true
	}
	return 0, false
}
